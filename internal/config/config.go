// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-ini/ini"

	"github.com/okchi8/anpr-gate/internal/core"
)

// Config é o config.ini carregado. Imutável depois do Load.
type Config struct {
	LogFile  string
	LogLevel string

	Cameras []core.CameraInfo

	GateCheckWindow   time.Duration
	GateCheckInterval time.Duration

	TelegramBotToken string

	VIPListCSV string

	WatermarkText    string
	WatermarkOpacity int
}

// Load lê o config.ini no formato do serviço:
//
//	[app]                        log_file, log_level
//	[cameras]                    ips (lista separada por vírgula), username, password, event_code
//	[camera_gate_alarm_channels] <ip> = <índice do bit>
//	[gate_check]                 vip_gate_check_duration_seconds, vip_gate_check_interval_seconds
//	[telegram]                   bot_token
//	[files]                      vip_list_csv
//	[watermark]                  text, opacity
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("carregando %s: %w", path, err)
	}

	cfg := &Config{
		LogFile:          f.Section("app").Key("log_file").MustString("anpr_app.log"),
		LogLevel:         f.Section("app").Key("log_level").MustString("INFO"),
		TelegramBotToken: f.Section("telegram").Key("bot_token").String(),
		VIPListCSV:       f.Section("files").Key("vip_list_csv").String(),
		WatermarkText:    f.Section("watermark").Key("text").String(),
		WatermarkOpacity: f.Section("watermark").Key("opacity").MustInt(180),
	}

	camSec := f.Section("cameras")
	username := camSec.Key("username").String()
	password := camSec.Key("password").String()
	eventCode := camSec.Key("event_code").String()

	channels := f.Section("camera_gate_alarm_channels")

	for _, raw := range strings.Split(camSec.Key("ips").String(), ",") {
		ip := strings.TrimSpace(raw)
		if ip == "" {
			continue
		}
		info := core.CameraInfo{
			IP:          ip,
			Username:    username,
			Password:    password,
			GateChannel: -1,
			EventCode:   eventCode,
		}
		if channels.HasKey(ip) {
			ch, err := channels.Key(ip).Int()
			if err != nil {
				return nil, fmt.Errorf("canal de alarme inválido pra câmera %s: %w", ip, err)
			}
			info.GateChannel = ch
		}
		cfg.Cameras = append(cfg.Cameras, info)
	}

	if len(cfg.Cameras) == 0 {
		return nil, fmt.Errorf("nenhuma câmera em [cameras] ips")
	}

	gate := f.Section("gate_check")
	cfg.GateCheckWindow = secondsKey(gate, "vip_gate_check_duration_seconds", 2.0)
	cfg.GateCheckInterval = secondsKey(gate, "vip_gate_check_interval_seconds", 0.5)

	return cfg, nil
}

func secondsKey(sec *ini.Section, name string, def float64) time.Duration {
	v := sec.Key(name).MustFloat64(def)
	if v <= 0 {
		v = def
	}
	return time.Duration(v * float64(time.Second))
}
