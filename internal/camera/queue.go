// internal/camera/queue.go
package camera

import (
	"sync"
	"time"

	"github.com/okchi8/anpr-gate/internal/core"
)

// Queue é a fila compartilhada de detecções: múltiplos produtores (um por
// câmera), consumo com timeout. Sem limite de tamanho — produtor nunca
// espera o consumidor; um consumidor lento vira crescimento de memória,
// não câmera travada.
type Queue struct {
	mu    sync.Mutex
	items []core.DetectionEvent

	// acordado (sem bloquear) a cada Push
	wake chan struct{}
}

func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push enfileira um evento. Nunca bloqueia.
func (q *Queue) Push(evt core.DetectionEvent) {
	q.mu.Lock()
	q.items = append(q.items, evt)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len devolve quantos eventos estão aguardando consumo.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain espera até `wait` pelo primeiro evento e depois recolhe, sem
// esperar mais, até max itens já enfileirados. Pode voltar vazio.
func (q *Queue) Drain(max int, wait time.Duration) []core.DetectionEvent {
	if max <= 0 {
		return nil
	}

	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		if batch := q.take(max); len(batch) > 0 {
			return batch
		}
		select {
		case <-q.wake:
			// alguém publicou, tenta de novo
		case <-deadline.C:
			return q.take(max)
		}
	}
}

func (q *Queue) take(max int) []core.DetectionEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	n := max
	if n > len(q.items) {
		n = len(q.items)
	}
	batch := make([]core.DetectionEvent, n)
	copy(batch, q.items)
	q.items = q.items[n:]
	return batch
}
