// internal/dispatcher/dispatcher.go
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/okchi8/anpr-gate/internal/camera"
	"github.com/okchi8/anpr-gate/internal/core"
	"github.com/okchi8/anpr-gate/internal/mqttclient"
	"github.com/okchi8/anpr-gate/internal/notify"
	"github.com/okchi8/anpr-gate/internal/storage"
	"github.com/okchi8/anpr-gate/internal/vip"
	"github.com/okchi8/anpr-gate/internal/watermark"
)

const (
	drainMax  = 10
	drainWait = 500 * time.Millisecond
)

// Dispatcher é o consumidor da fila: pra cada detecção faz o lookup VIP,
// confere o alarme do portão (ativo = pode notificar), marca d'água na
// imagem e manda a notificação. Arquiva e publica a detecção no MQTT
// independente de ser VIP.
//
// O probe de alarme roda no mesmo loop do consumo: enquanto ele espera,
// as próximas detecções ficam na fila. Acoplamento aceito — o portão só
// abre pra um carro por vez.
type Dispatcher struct {
	fleet    *camera.Fleet
	vips     *vip.Manager
	notifier notify.Notifier

	// opcionais, nil = desligado
	archive storage.SnapshotArchive
	mqtt    *mqttclient.Client

	baseTopic string

	watermarkText    string
	watermarkOpacity int
}

func New(fleet *camera.Fleet, vips *vip.Manager, notifier notify.Notifier) *Dispatcher {
	return &Dispatcher{
		fleet:            fleet,
		vips:             vips,
		notifier:         notifier,
		watermarkOpacity: 180,
	}
}

func (d *Dispatcher) SetArchive(a storage.SnapshotArchive) { d.archive = a }

func (d *Dispatcher) SetMQTT(cli *mqttclient.Client, baseTopic string) {
	d.mqtt = cli
	d.baseTopic = strings.TrimSuffix(baseTopic, "/")
}

func (d *Dispatcher) SetWatermark(text string, opacity int) {
	d.watermarkText = text
	d.watermarkOpacity = opacity
}

// Run consome a fila até o ctx ser cancelado. Depois do cancelamento
// ainda esvazia o que já estava enfileirado.
func (d *Dispatcher) Run(ctx context.Context) {
	log.Printf("[dispatcher] iniciado")
	for {
		events := d.fleet.Drain(drainMax, drainWait)
		for _, evt := range events {
			d.handle(ctx, evt)
		}
		if ctx.Err() != nil && len(events) == 0 && d.fleet.Pending() == 0 {
			log.Printf("[dispatcher] encerrado")
			return
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, evt core.DetectionEvent) {
	plate := strings.ToUpper(strings.TrimSpace(evt.Plate))
	log.Printf("[dispatcher] detecção: placa=%s camera=%s ts=%s",
		plate, evt.CameraIP, evt.Timestamp.Format("2006-01-02 15:04:05"))

	d.archiveDetection(evt)
	d.publishDetection(evt)

	// relê a lista a cada detecção: edições no CSV valem na hora, sem
	// restart do serviço
	if err := d.vips.Refresh(); err != nil {
		log.Printf("[dispatcher] erro recarregando lista VIP: %v", err)
	}

	rec, ok := d.vips.Lookup(plate)
	if !ok {
		log.Printf("[dispatcher] placa %s não está na lista VIP", plate)
		return
	}

	log.Printf("[dispatcher] VIP detectado: placa=%s dono=%s tipo=%s chat=%s",
		plate, rec.OwnerName, rec.Type, rec.ChatID)

	// alarme ativo = portão abrindo pro VIP = permissão pra notificar;
	// o probe é fail-closed, na dúvida não notifica
	if !d.fleet.GateAlarmActive(ctx, evt.CameraIP) {
		log.Printf("[dispatcher] portão não acionado pra %s, notificação suprimida", plate)
		return
	}

	if rec.ChatID == "" {
		log.Printf("[dispatcher] VIP %s sem chat_id na lista, sem como notificar", plate)
		return
	}

	image := evt.Image
	if d.watermarkText != "" {
		image = watermark.Apply(image, d.watermarkText, d.watermarkOpacity)
	}

	caption := notify.FormatVIPCaption(plate, rec, evt.Timestamp, evt.CameraIP)
	filename := notify.ImageFilename(plate, evt.Timestamp)

	if err := d.notifier.Send(rec.ChatID, caption, image, filename); err != nil {
		log.Printf("[dispatcher] falha na notificação do VIP %s: %v", plate, err)
		return
	}
	log.Printf("[dispatcher] notificação enviada pro VIP %s (chat %s)", plate, rec.ChatID)
}

func (d *Dispatcher) archiveDetection(evt core.DetectionEvent) {
	if d.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url, err := d.archive.SaveDetection(ctx, evt)
	if err != nil {
		log.Printf("[dispatcher] erro arquivando detecção %s: %v", evt.Plate, err)
		return
	}
	log.Printf("[dispatcher] detecção arquivada em %s", url)
}

// publishDetection manda o evento (sem a imagem) pro tópico da câmera.
func (d *Dispatcher) publishDetection(evt core.DetectionEvent) {
	if d.mqtt == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("[dispatcher] erro no marshal da detecção %s: %v", evt.Plate, err)
		return
	}
	topic := fmt.Sprintf("%s/%s/events/plate", d.baseTopic, evt.CameraIP)
	if err := d.mqtt.Publish(topic, 1, false, payload); err != nil {
		log.Printf("[dispatcher] erro publicando detecção em %s: %v", topic, err)
	}
}
