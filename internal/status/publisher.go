// internal/status/publisher.go
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/okchi8/anpr-gate/internal/camera"
	"github.com/okchi8/anpr-gate/internal/mqttclient"
)

// Publisher publica periodicamente no MQTT o estado de cada conexão de
// câmera e o status do coletor (com métricas de CPU/memória do processo).
// Concern de observação, fora do contrato do core: com MQTT desligado
// vira no-op.
type Publisher struct {
	mqtt      *mqttclient.Client
	fleet     *camera.Fleet
	baseTopic string
	interval  time.Duration
	proc      *process.Process
}

func NewPublisher(mqtt *mqttclient.Client, fleet *camera.Fleet, baseTopic string) *Publisher {
	baseTopic = strings.TrimSuffix(baseTopic, "/")

	interval := envDurationSeconds("ANPR_STATUS_INTERVAL_SECONDS", 30*time.Second)

	var procHandle *process.Process
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		procHandle = p
	}

	return &Publisher{
		mqtt:      mqtt,
		fleet:     fleet,
		baseTopic: baseTopic,
		interval:  interval,
		proc:      procHandle,
	}
}

// Run roda o loop de status até o ctx ser cancelado.
func (p *Publisher) Run(ctx context.Context) {
	if p.mqtt == nil {
		log.Printf("[status] MQTT desligado, status loop não vai rodar")
		return
	}

	hostname, _ := os.Hostname()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("[status] status loop iniciado (intervalo=%s)", p.interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[status] status loop encerrado")
			return
		case t := <-ticker.C:
			p.publishAll(hostname, t)
		}
	}
}

func (p *Publisher) publishAll(hostname string, now time.Time) {
	for _, snap := range p.fleet.Snapshots() {
		if err := p.publishCameraStatus(snap, now); err != nil {
			log.Printf("[status] erro ao publicar status da câmera %s: %v", snap.Info.IP, err)
		}
	}
	if err := p.publishCollectorStatus(hostname, now); err != nil {
		log.Printf("[status] erro ao publicar status do coletor: %v", err)
	}
}

func (p *Publisher) publishCameraStatus(snap camera.Snapshot, now time.Time) error {
	payload := map[string]interface{}{
		"camera_ip": snap.Info.IP,
		"status":    string(snap.State),
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	if !snap.StateSince.IsZero() {
		payload["status_since"] = snap.StateSince.UTC().Format(time.RFC3339)
	}
	if snap.StateReason != "" {
		payload["status_reason"] = snap.StateReason
	}
	if !snap.LastEventAt.IsZero() {
		payload["last_event_at"] = snap.LastEventAt.UTC().Format(time.RFC3339)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal camera status: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/status", p.baseTopic, snap.Info.IP)
	if err := p.mqtt.Publish(topic, 1, true, b); err != nil {
		return fmt.Errorf("publish camera status em %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) publishCollectorStatus(hostname string, now time.Time) error {
	var (
		cpuPercent  float64
		memPercent  float64
		memRSSBytes uint64
	)
	if p.proc != nil {
		if cpu, err := p.proc.CPUPercent(); err == nil {
			cpuPercent = cpu
		}
		if memInfo, err := p.proc.MemoryInfo(); err == nil {
			memRSSBytes = memInfo.RSS
		}
		if memP, err := p.proc.MemoryPercent(); err == nil {
			memPercent = float64(memP)
		}
	}

	payload := map[string]interface{}{
		"collector":        "anpr-gate",
		"status":           "online",
		"timestamp":        now.UTC().Format(time.RFC3339),
		"hostname":         hostname,
		"cameras_alive":    p.fleet.AliveCount(),
		"queue_pending":    p.fleet.Pending(),
		"cpu_percent":      cpuPercent,
		"memory_percent":   memPercent,
		"memory_rss_bytes": memRSSBytes,
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal collector status: %w", err)
	}

	topic := fmt.Sprintf("%s/collector/status", p.baseTopic)
	if err := p.mqtt.Publish(topic, 1, true, b); err != nil {
		return fmt.Errorf("publish collector status em %s: %w", topic, err)
	}
	return nil
}

func envDurationSeconds(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec <= 0 {
		log.Printf("[status] valor inválido em %s=%q, usando default %s", key, v, def)
		return def
	}
	return time.Duration(sec) * time.Second
}
