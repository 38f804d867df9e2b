// internal/camera/correlator.go
package camera

import (
	"log"
	"strings"
	"time"

	"github.com/okchi8/anpr-gate/internal/core"
)

const (
	// DefaultEventCode é o código de evento Dahua que qualifica uma
	// detecção de placa no snapManager.
	DefaultEventCode = "TrafficJunction"

	heartbeatMarker = "Heartbeat"

	eventCodeKey  = "Events[0].EventBaseInfo.Code"
	plateKey      = "Events[0].TrafficCar.PlateNumber"
	objectTextKey = "Events[0].Object.Text"
)

// correlator emparelha o part de texto de um evento qualificado com o
// part de imagem que vem logo em seguida no mesmo stream. Guarda no
// máximo um evento pendente por vez; qualquer part que não seja a imagem
// esperada descarta o pendente.
type correlator struct {
	cameraIP  string
	eventCode string

	pending map[string]string

	emit func(core.DetectionEvent)
}

func newCorrelator(cameraIP, eventCode string, emit func(core.DetectionEvent)) *correlator {
	if eventCode == "" {
		eventCode = DefaultEventCode
	}
	return &correlator{
		cameraIP:  cameraIP,
		eventCode: eventCode,
		emit:      emit,
	}
}

func (c *correlator) feed(p Part) {
	switch {
	case strings.HasPrefix(p.ContentType, "text/plain"):
		c.feedText(p.Body)
	case strings.HasPrefix(p.ContentType, "image/jpeg"):
		c.feedImage(p.Body)
	default:
		// tipo que não conhecemos: não deixa um pendente órfão casar
		// com uma imagem de outro evento
		c.pending = nil
	}
}

func (c *correlator) feedText(body []byte) {
	text := strings.TrimSpace(string(body))

	if strings.Contains(text, heartbeatMarker) {
		c.pending = nil
		return
	}

	details := parseEventText(text)
	if details[eventCodeKey] != c.eventCode {
		c.pending = nil
		return
	}
	c.pending = details
}

func (c *correlator) feedImage(body []byte) {
	if c.pending == nil {
		log.Printf("[camera %s] imagem sem evento %s pendente, descartando (%d bytes)",
			c.cameraIP, c.eventCode, len(body))
		return
	}

	plate := c.pending[plateKey]
	if plate == "" {
		plate = c.pending[objectTextKey]
	}
	if plate == "" {
		plate = core.UnknownPlate
	}

	c.emit(core.DetectionEvent{
		Plate: plate,
		// hora de processamento, não a hora reportada pela câmera
		Timestamp: time.Now(),
		CameraIP:  c.cameraIP,
		Image:     body,
		Details:   c.pending,
	})
	c.pending = nil
}

// parseEventText decodifica as linhas "chave=valor" do part de texto.
// Linhas sem '=' são ignoradas.
func parseEventText(text string) map[string]string {
	details := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		details[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return details
}
