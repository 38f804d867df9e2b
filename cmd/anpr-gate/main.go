// cmd/anpr-gate/main.go
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/okchi8/anpr-gate/internal/camera"
	"github.com/okchi8/anpr-gate/internal/config"
	"github.com/okchi8/anpr-gate/internal/dispatcher"
	"github.com/okchi8/anpr-gate/internal/mqttclient"
	"github.com/okchi8/anpr-gate/internal/notify"
	"github.com/okchi8/anpr-gate/internal/status"
	"github.com/okchi8/anpr-gate/internal/storage"
	"github.com/okchi8/anpr-gate/internal/vip"
)

func main() {
	// Carrega .env na raiz (se não existir, só loga aviso)
	if err := godotenv.Load(); err != nil {
		log.Printf("[main] aviso: não foi possível carregar .env: %v", err)
	}

	cfgFlag := flag.String("config", "config.ini", "caminho do config.ini")
	flag.Parse()

	cfg, err := config.Load(*cfgFlag)
	if err != nil {
		log.Fatalf("[main] erro no config: %v", err)
	}

	setupLogging(cfg.LogFile)
	log.Printf("[main] anpr-gate iniciando com %d câmeras", len(cfg.Cameras))

	vips := vip.NewManager(cfg.VIPListCSV)

	notifier, err := notify.NewTelegramNotifier(cfg.TelegramBotToken)
	if err != nil {
		log.Fatalf("[main] erro no telegram: %v", err)
	}

	fleet := camera.NewFleet(cfg.Cameras)
	for _, conn := range fleet.Connections() {
		conn.SetGateCheckWindow(cfg.GateCheckWindow, cfg.GateCheckInterval)
	}

	disp := dispatcher.New(fleet, vips, notifier)
	disp.SetWatermark(cfg.WatermarkText, cfg.WatermarkOpacity)

	// MinIO é opcional: sem credenciais, segue sem arquivo remoto
	if archive, err := storage.NewMinioArchiveFromEnv(); err != nil {
		log.Printf("[main] aviso: MinIO não inicializado: %v", err)
	} else {
		disp.SetArchive(archive)
	}

	// MQTT também é opcional (MQTT_HOST vazio desliga)
	baseTopic := getenv("MQTT_BASE_TOPIC", "anpr/cameras")
	mqttCli, err := mqttclient.NewClientFromEnv("anpr-gate")
	if err != nil {
		log.Fatalf("[main] erro ao conectar no MQTT: %v", err)
	}
	if mqttCli != nil {
		defer mqttCli.Close()
		disp.SetMQTT(mqttCli, baseTopic)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fleet.Start()

	go status.NewPublisher(mqttCli, fleet, baseTopic).Run(ctx)

	dispDone := make(chan struct{})
	go func() {
		defer close(dispDone)
		disp.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("[main] sinal recebido, encerrando...")

	fleet.Stop()
	cancel()
	<-dispDone
	log.Println("[main] encerrado")
}

// setupLogging manda o log pro arquivo configurado e pro console.
func setupLogging(logFile string) {
	if logFile == "" {
		return
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("[main] aviso: não foi possível abrir %s, logando só no console: %v", logFile, err)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
