// internal/core/types.go
package core

import "time"

type CameraInfo struct {
	IP       string `json:"ip"`
	Username string `json:"username"`
	Password string `json:"password"`

	// Índice do canal de saída de alarme do portão (bit em getOutState).
	// -1 = não configurado; o probe responde inativo sem ir na rede.
	GateChannel int `json:"gate_channel"`

	// Código de evento que qualifica uma detecção de placa.
	// Vazio = TrafficJunction.
	EventCode string `json:"event_code,omitempty"`
}

// DetectionEvent é uma detecção de placa completa: os metadados do evento
// já correlacionados com a imagem correspondente. Imutável depois de
// construído; quem tira da fila passa a ser o dono.
type DetectionEvent struct {
	Plate     string            `json:"Plate"`
	Timestamp time.Time         `json:"Timestamp"`
	CameraIP  string            `json:"CameraIP"`
	Details   map[string]string `json:"Details"`

	// Bytes crus do JPEG. Não vai pro JSON / MQTT.
	Image []byte `json:"-"`
}

// UnknownPlate é usado quando o evento qualificado não traz número de placa.
const UnknownPlate = "UNKNOWN_PLATE"
