package camera

import (
	"bytes"
	"testing"

	"github.com/okchi8/anpr-gate/internal/core"
)

func collectEvents() (*[]core.DetectionEvent, func(core.DetectionEvent)) {
	events := &[]core.DetectionEvent{}
	return events, func(evt core.DetectionEvent) { *events = append(*events, evt) }
}

func TestCorrelatorPairsEventWithImage(t *testing.T) {
	events, emit := collectEvents()
	corr := newCorrelator("10.0.0.10", "", emit)

	corr.feed(Part{ContentType: "text/plain", Body: []byte(
		"Events[0].EventBaseInfo.Code=TrafficJunction\nEvents[0].TrafficCar.PlateNumber=ABC123",
	)})
	corr.feed(Part{ContentType: "image/jpeg", Body: []byte{0xFF, 0xD8, 0xFF, 0xD9}})

	if len(*events) != 1 {
		t.Fatalf("esperava 1 detecção, veio %d", len(*events))
	}
	evt := (*events)[0]
	if evt.Plate != "ABC123" {
		t.Errorf("placa: %q", evt.Plate)
	}
	if evt.CameraIP != "10.0.0.10" {
		t.Errorf("camera ip: %q", evt.CameraIP)
	}
	if !bytes.Equal(evt.Image, []byte{0xFF, 0xD8, 0xFF, 0xD9}) {
		t.Errorf("imagem: %v", evt.Image)
	}
	if evt.Details["Events[0].EventBaseInfo.Code"] != "TrafficJunction" {
		t.Errorf("details não preservados: %v", evt.Details)
	}
}

func TestCorrelatorImageWithoutPending(t *testing.T) {
	events, emit := collectEvents()
	corr := newCorrelator("10.0.0.10", "", emit)

	corr.feed(Part{ContentType: "image/jpeg", Body: []byte{0xFF, 0xD8}})
	if len(*events) != 0 {
		t.Fatalf("imagem sem evento pendente não pode emitir, veio %d", len(*events))
	}
}

func TestCorrelatorHeartbeatClearsPending(t *testing.T) {
	events, emit := collectEvents()
	corr := newCorrelator("10.0.0.10", "", emit)

	corr.feed(Part{ContentType: "text/plain", Body: []byte(
		"Events[0].EventBaseInfo.Code=TrafficJunction\nEvents[0].TrafficCar.PlateNumber=XYZ999",
	)})
	corr.feed(Part{ContentType: "text/plain", Body: []byte("Heartbeat")})
	corr.feed(Part{ContentType: "image/jpeg", Body: []byte{0xFF, 0xD8}})

	if len(*events) != 0 {
		t.Fatalf("heartbeat deveria descartar o pendente, veio %d detecções", len(*events))
	}
}

func TestCorrelatorNonQualifyingEvent(t *testing.T) {
	events, emit := collectEvents()
	corr := newCorrelator("10.0.0.10", "", emit)

	corr.feed(Part{ContentType: "text/plain", Body: []byte(
		"Events[0].EventBaseInfo.Code=VideoMotion",
	)})
	corr.feed(Part{ContentType: "image/jpeg", Body: []byte{0xFF, 0xD8}})

	if len(*events) != 0 {
		t.Fatalf("evento de outro código não qualifica, veio %d", len(*events))
	}
}

func TestCorrelatorUnknownContentTypeClearsPending(t *testing.T) {
	events, emit := collectEvents()
	corr := newCorrelator("10.0.0.10", "", emit)

	corr.feed(Part{ContentType: "text/plain", Body: []byte(
		"Events[0].EventBaseInfo.Code=TrafficJunction\nEvents[0].TrafficCar.PlateNumber=XYZ999",
	)})
	corr.feed(Part{ContentType: "application/octet-stream", Body: []byte{1, 2, 3}})
	corr.feed(Part{ContentType: "image/jpeg", Body: []byte{0xFF, 0xD8}})

	if len(*events) != 0 {
		t.Fatalf("part desconhecido entre evento e imagem deveria descartar o pendente")
	}
}

func TestCorrelatorPlateFallbacks(t *testing.T) {
	events, emit := collectEvents()
	corr := newCorrelator("10.0.0.10", "", emit)

	// sem PlateNumber cai pro Object.Text
	corr.feed(Part{ContentType: "text/plain", Body: []byte(
		"Events[0].EventBaseInfo.Code=TrafficJunction\nEvents[0].Object.Text=DEF456",
	)})
	corr.feed(Part{ContentType: "image/jpeg", Body: []byte{0xFF, 0xD8}})

	// sem nenhum dos dois vira UNKNOWN_PLATE
	corr.feed(Part{ContentType: "text/plain", Body: []byte(
		"Events[0].EventBaseInfo.Code=TrafficJunction",
	)})
	corr.feed(Part{ContentType: "image/jpeg", Body: []byte{0xFF, 0xD8}})

	if len(*events) != 2 {
		t.Fatalf("esperava 2 detecções, veio %d", len(*events))
	}
	if (*events)[0].Plate != "DEF456" {
		t.Errorf("fallback Object.Text: %q", (*events)[0].Plate)
	}
	if (*events)[1].Plate != core.UnknownPlate {
		t.Errorf("fallback final: %q", (*events)[1].Plate)
	}
}

func TestCorrelatorCustomEventCode(t *testing.T) {
	events, emit := collectEvents()
	corr := newCorrelator("10.0.0.10", "TrafficParking", emit)

	corr.feed(Part{ContentType: "text/plain", Body: []byte(
		"Events[0].EventBaseInfo.Code=TrafficParking\nEvents[0].TrafficCar.PlateNumber=GHI789",
	)})
	corr.feed(Part{ContentType: "image/jpeg", Body: []byte{0xFF, 0xD8}})

	if len(*events) != 1 || (*events)[0].Plate != "GHI789" {
		t.Fatalf("código customizado não qualificou: %+v", *events)
	}
}
