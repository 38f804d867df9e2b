package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
[app]
log_file = /var/log/anpr.log
log_level = DEBUG

[cameras]
ips = 10.0.0.10, 10.0.0.11
username = admin
password = secret
event_code = TrafficJunction

[camera_gate_alarm_channels]
10.0.0.10 = 2

[gate_check]
vip_gate_check_duration_seconds = 3.0
vip_gate_check_interval_seconds = 0.25

[telegram]
bot_token = 123:abc

[files]
vip_list_csv = /etc/anpr/vips.csv

[watermark]
text = CONDOMINIO
opacity = 128
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load falhou: %v", err)
	}

	if cfg.LogFile != "/var/log/anpr.log" || cfg.LogLevel != "DEBUG" {
		t.Errorf("app: %q %q", cfg.LogFile, cfg.LogLevel)
	}
	if len(cfg.Cameras) != 2 {
		t.Fatalf("esperava 2 câmeras, veio %d", len(cfg.Cameras))
	}

	first := cfg.Cameras[0]
	if first.IP != "10.0.0.10" || first.Username != "admin" || first.Password != "secret" {
		t.Errorf("primeira câmera: %+v", first)
	}
	if first.GateChannel != 2 {
		t.Errorf("canal da primeira câmera: %d", first.GateChannel)
	}
	if first.EventCode != "TrafficJunction" {
		t.Errorf("event code: %q", first.EventCode)
	}

	// sem entrada em [camera_gate_alarm_channels] o canal fica -1
	if cfg.Cameras[1].GateChannel != -1 {
		t.Errorf("canal da segunda câmera: %d", cfg.Cameras[1].GateChannel)
	}

	if cfg.GateCheckWindow != 3*time.Second {
		t.Errorf("janela do gate check: %s", cfg.GateCheckWindow)
	}
	if cfg.GateCheckInterval != 250*time.Millisecond {
		t.Errorf("intervalo do gate check: %s", cfg.GateCheckInterval)
	}

	if cfg.TelegramBotToken != "123:abc" {
		t.Errorf("bot token: %q", cfg.TelegramBotToken)
	}
	if cfg.VIPListCSV != "/etc/anpr/vips.csv" {
		t.Errorf("vip csv: %q", cfg.VIPListCSV)
	}
	if cfg.WatermarkText != "CONDOMINIO" || cfg.WatermarkOpacity != 128 {
		t.Errorf("watermark: %q %d", cfg.WatermarkText, cfg.WatermarkOpacity)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
[cameras]
ips = 10.0.0.10
username = admin
password = secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load falhou: %v", err)
	}
	if cfg.LogFile != "anpr_app.log" || cfg.LogLevel != "INFO" {
		t.Errorf("defaults do [app]: %q %q", cfg.LogFile, cfg.LogLevel)
	}
	if cfg.GateCheckWindow != 2*time.Second || cfg.GateCheckInterval != 500*time.Millisecond {
		t.Errorf("defaults do gate check: %s / %s", cfg.GateCheckWindow, cfg.GateCheckInterval)
	}
	if cfg.WatermarkOpacity != 180 {
		t.Errorf("opacidade default: %d", cfg.WatermarkOpacity)
	}
}

func TestLoadWithoutCameras(t *testing.T) {
	path := writeConfig(t, "[cameras]\nips =\n")
	if _, err := Load(path); err == nil {
		t.Fatal("config sem câmeras tem que falhar")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nao_existe.ini")); err == nil {
		t.Fatal("arquivo ausente tem que falhar")
	}
}

func TestLoadInvalidGateChannel(t *testing.T) {
	path := writeConfig(t, `
[cameras]
ips = 10.0.0.10

[camera_gate_alarm_channels]
10.0.0.10 = portao
`)
	if _, err := Load(path); err == nil {
		t.Fatal("canal de alarme não numérico tem que falhar")
	}
}

func TestLoadNonPositiveGateWindowFallsBack(t *testing.T) {
	path := writeConfig(t, `
[cameras]
ips = 10.0.0.10

[gate_check]
vip_gate_check_duration_seconds = 0
vip_gate_check_interval_seconds = -1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load falhou: %v", err)
	}
	if cfg.GateCheckWindow != 2*time.Second || cfg.GateCheckInterval != 500*time.Millisecond {
		t.Errorf("valores não positivos deveriam cair no default: %s / %s",
			cfg.GateCheckWindow, cfg.GateCheckInterval)
	}
}
