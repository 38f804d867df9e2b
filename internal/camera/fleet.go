// internal/camera/fleet.go
package camera

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/okchi8/anpr-gate/internal/core"
)

// Fleet é dona de todas as conexões de câmera e da fila compartilhada.
// Start/Stop controlam os ciclos de vida; Drain entrega as detecções pro
// consumidor; GateAlarmActive roteia o probe pra conexão certa.
type Fleet struct {
	queue *Queue
	conns map[string]*Connection

	stopTimeout time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	running map[string]chan struct{} // fechado quando o Run da conexão retorna
}

func NewFleet(cameras []core.CameraInfo) *Fleet {
	f := &Fleet{
		queue:       NewQueue(),
		conns:       make(map[string]*Connection, len(cameras)),
		stopTimeout: 10 * time.Second,
		running:     make(map[string]chan struct{}),
	}
	for _, info := range cameras {
		f.conns[info.IP] = NewConnection(info, f.queue)
	}
	return f
}

// Connections devolve as conexões da frota (pra configuração adicional
// antes do Start e pro status loop).
func (f *Fleet) Connections() []*Connection {
	out := make([]*Connection, 0, len(f.conns))
	for _, c := range f.conns {
		out = append(out, c)
	}
	return out
}

// Start lança uma goroutine de conexão por câmera.
func (f *Fleet) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		log.Printf("[fleet] Start chamado com frota já rodando, ignorando")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel

	log.Printf("[fleet] iniciando monitoramento de %d câmeras", len(f.conns))
	for ip, conn := range f.conns {
		done := make(chan struct{})
		f.running[ip] = done
		go func(c *Connection, done chan struct{}) {
			defer close(done)
			c.Run(ctx)
		}(conn, done)
	}
}

// Stop sinaliza todas as conexões e espera (com limite) cada uma chegar
// em Stopped. Quem não terminar a tempo fica logado — o join é melhor
// esforço, não terminação forçada.
func (f *Fleet) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	running := f.running
	f.running = make(map[string]chan struct{})
	f.mu.Unlock()

	if cancel == nil {
		return
	}

	log.Printf("[fleet] parando todas as conexões")
	cancel()

	for _, ip := range joinConnections(running, f.stopTimeout) {
		log.Printf("[fleet] conexão %s não terminou dentro de %s", ip, f.stopTimeout)
	}
	log.Printf("[fleet] frota parada")
}

// joinConnections espera cada canal fechar dentro do prazo total e
// devolve os IPs que não terminaram. Quem já fechou nunca entra na
// lista, mesmo com o prazo estourado — a checagem sem bloqueio vem
// antes de consultar o timer.
func joinConnections(running map[string]chan struct{}, timeout time.Duration) []string {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var stragglers []string
	for ip, done := range running {
		select {
		case <-done:
			continue
		default:
		}
		select {
		case <-done:
		case <-deadline.C:
			stragglers = append(stragglers, ip)
			// timer já disparou: só checa os restantes sem esperar
			deadline.Reset(0)
		}
	}
	return stragglers
}

// Drain espera até `wait` pela primeira detecção e recolhe até max itens
// já enfileirados. Pode voltar vazio.
func (f *Fleet) Drain(max int, wait time.Duration) []core.DetectionEvent {
	return f.queue.Drain(max, wait)
}

// Pending devolve quantas detecções aguardam consumo.
func (f *Fleet) Pending() int {
	return f.queue.Len()
}

// GateAlarmActive roteia o probe de alarme pra conexão da câmera.
// Responde inativo se não existe conexão viva pro IP.
func (f *Fleet) GateAlarmActive(ctx context.Context, cameraIP string) bool {
	conn, ok := f.conns[cameraIP]
	if !ok {
		log.Printf("[fleet] probe de alarme pra câmera desconhecida %s", cameraIP)
		return false
	}
	if !conn.Alive() {
		log.Printf("[fleet] probe de alarme pra câmera parada %s", cameraIP)
		return false
	}
	return conn.GateAlarmActive(ctx)
}

// AliveCount diz quantas conexões ainda não terminaram, pro status loop.
func (f *Fleet) AliveCount() int {
	n := 0
	for _, c := range f.conns {
		if c.Alive() {
			n++
		}
	}
	return n
}

// Snapshots devolve a visão de status de todas as conexões.
func (f *Fleet) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(f.conns))
	for _, c := range f.conns {
		out = append(out, c.Snapshot())
	}
	return out
}
