// internal/camera/connection.go
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okchi8/anpr-gate/internal/core"
)

// State representa onde o loop da conexão está. Só a própria conexão
// escreve; o resto do processo enxerga via Snapshot/Alive.
type State string

const (
	StateInit        State = "init"
	StateConnecting  State = "connecting"
	StateStreaming   State = "streaming"
	StateBackoffWait State = "backoff_wait"
	StateStopped     State = "stopped"
)

// StatusUpdate é reportado pela conexão a cada mudança de estado.
type StatusUpdate struct {
	State  State
	Reason string
}

// Snapshot é a visão externa de uma conexão, usada pelo status loop.
type Snapshot struct {
	Info        core.CameraInfo
	State       State
	StateSince  time.Time
	StateReason string
	LastEventAt time.Time
}

const (
	// backoff fixos (frota pequena, sem necessidade de exponencial):
	// curto depois de erro de rede, longo depois de erro não classificado.
	retryShort = 30 * time.Second
	retryLong  = 60 * time.Second

	connectTimeout = 10 * time.Second
	// heartbeat da câmera é 15s; sem bytes nesse intervalo fecha e reconecta
	readTimeout  = 30 * time.Second
	probeTimeout = 5 * time.Second

	readChunkSize = 4096
)

// errInternal marca falhas que não são de rede (pânico no loop, bug de
// protocolo). Resultam no backoff longo.
var errInternal = errors.New("internal fault")

// Connection mantém o stream de eventos de uma câmera: abre o
// attachFileProc, alimenta o parser incremental, correlaciona evento e
// imagem e empurra DetecçãoEvents pra fila compartilhada. Também expõe o
// probe síncrono do alarme do portão, independente do stream.
type Connection struct {
	info  core.CameraInfo
	queue *Queue

	client *http.Client

	// GateCheckWindow/Interval controlam o polling do probe de alarme.
	// Janela <= 0 faz uma única tentativa.
	gateCheckWindow   time.Duration
	gateCheckInterval time.Duration

	statusHandler func(StatusUpdate)

	mu          sync.Mutex
	state       State
	stateSince  time.Time
	stateReason string
	lastEventAt time.Time
}

func NewConnection(info core.CameraInfo, queue *Queue) *Connection {
	// sem Timeout no client: o stream fica aberto indefinidamente.
	// Conexão e headers têm limite no transport.
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
		ResponseHeaderTimeout: connectTimeout,
	}
	return &Connection{
		info:              info,
		queue:             queue,
		client:            &http.Client{Transport: transport},
		gateCheckWindow:   2 * time.Second,
		gateCheckInterval: 500 * time.Millisecond,
		state:             StateInit,
		stateSince:        time.Now(),
	}
}

// SetGateCheckWindow ajusta a janela/intervalo de polling do probe.
func (c *Connection) SetGateCheckWindow(window, interval time.Duration) {
	c.gateCheckWindow = window
	c.gateCheckInterval = interval
}

// SetStatusHandler registra callback para mudanças de estado da conexão.
func (c *Connection) SetStatusHandler(fn func(StatusUpdate)) {
	c.statusHandler = fn
}

func (c *Connection) IP() string { return c.info.IP }

// Alive é verdadeiro enquanto o loop da conexão não terminou.
func (c *Connection) Alive() bool {
	return c.CurrentState() != StateStopped
}

func (c *Connection) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Info:        c.info,
		State:       c.state,
		StateSince:  c.stateSince,
		StateReason: c.stateReason,
		LastEventAt: c.lastEventAt,
	}
}

func (c *Connection) setState(s State, reason string) {
	c.mu.Lock()
	c.state = s
	c.stateSince = time.Now()
	c.stateReason = reason
	c.mu.Unlock()

	if c.statusHandler != nil {
		c.statusHandler(StatusUpdate{State: s, Reason: reason})
	}
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.lastEventAt = time.Now()
	c.mu.Unlock()
}

// Run roda o loop da conexão até o ctx ser cancelado. Nenhum erro vindo
// de dentro (rede, protocolo, pânico) escapa: tudo vira backoff e nova
// tentativa. Só o cancelamento termina o loop.
func (c *Connection) Run(ctx context.Context) {
	log.Printf("[camera %s] iniciando conexão", c.info.IP)

	for {
		if ctx.Err() != nil {
			c.setState(StateStopped, "stop solicitado")
			return
		}

		c.setState(StateConnecting, "")
		err := c.runOnce(ctx)

		if ctx.Err() != nil {
			c.setState(StateStopped, "stop solicitado")
			return
		}

		if err == nil {
			// fim limpo do stream: reconecta direto
			log.Printf("[camera %s] stream terminou, reconectando", c.info.IP)
			continue
		}

		wait := retryShort
		if errors.Is(err, errInternal) {
			wait = retryLong
		}
		log.Printf("[camera %s] erro no stream: %v, nova tentativa em %s", c.info.IP, err, wait)

		c.setState(StateBackoffWait, err.Error())
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			c.setState(StateStopped, "stop solicitado")
			return
		}
	}
}

// runOnce abre o stream e consome até erro ou fim. Pânico aqui dentro é
// convertido em errInternal pra não derrubar as outras câmeras.
func (c *Connection) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic no loop da câmera %s: %v", errInternal, c.info.IP, r)
		}
	}()

	// Mesma URL validada no curl: Events=[<code>] com colchetes escapados.
	code := c.info.EventCode
	if code == "" {
		code = DefaultEventCode
	}
	attachURL := fmt.Sprintf(
		"http://%s/cgi-bin/snapManager.cgi?action=attachFileProc&channel=1&heartbeat=15&Flags[0]=Event&Events=%%5B%s%%5D",
		c.info.IP, code,
	)

	// o ctx vive pela duração inteira do stream (cancelar fecha o body);
	// o timeout de conexão fica no transport
	resp, err := doDigest(ctx, c.client, attachURL, c.info.Username, c.info.Password)
	if err != nil {
		return fmt.Errorf("attachFileProc: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("attachFileProc status %d: %s", resp.StatusCode, string(b))
	}

	boundary, err := resolveBoundary(resp.Header.Get("Content-Type"))
	if err != nil {
		return err
	}

	log.Printf("[camera %s] conectado, streaming eventos %s", c.info.IP, code)
	c.setState(StateStreaming, "")

	corr := newCorrelator(c.info.IP, code, func(evt core.DetectionEvent) {
		log.Printf("[camera %s] detecção placa=%s (%d bytes de imagem)",
			c.info.IP, evt.Plate, len(evt.Image))
		c.queue.Push(evt)
		c.touch()
	})

	// sem bytes dentro de readTimeout => fecha o body, o Read abaixo
	// devolve erro e caímos no backoff curto; garante que um stream
	// travado também observa o stop em tempo limitado
	watchdog := time.AfterFunc(readTimeout, func() { resp.Body.Close() })
	defer watchdog.Stop()

	var buf []byte
	chunk := make([]byte, readChunkSize)

	for {
		n, readErr := resp.Body.Read(chunk)
		watchdog.Reset(readTimeout)

		if n > 0 {
			buf = append(buf, chunk[:n]...)

			var parts []Part
			var end bool
			parts, buf, end = parseParts(buf, boundary)
			for _, p := range parts {
				corr.feed(p)
			}
			if end {
				return nil
			}
		}

		if readErr != nil {
			if ctx.Err() != nil {
				return readErr
			}
			if readErr == io.EOF {
				// servidor fechou sem boundary terminal
				return fmt.Errorf("stream encerrado pela câmera")
			}
			return fmt.Errorf("lendo stream: %w", readErr)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// resolveBoundary extrai o token de boundary ("--" + valor declarado) do
// Content-Type da resposta.
func resolveBoundary(contentType string) ([]byte, error) {
	mediatype, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("Content-Type inválido %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediatype, "multipart/") {
		return nil, fmt.Errorf("media type inesperado: %s", mediatype)
	}
	b := params["boundary"]
	if b == "" {
		return nil, fmt.Errorf("sem boundary no Content-Type: %s", contentType)
	}
	return []byte("--" + b), nil
}

// GateAlarmActive verifica se o canal de alarme do portão está ativo,
// fazendo polling dentro da janela configurada. Qualquer erro (rede,
// resposta fora do formato, parse) conta como inativo: "ativo" libera
// notificação, então na dúvida a resposta é não.
func (c *Connection) GateAlarmActive(ctx context.Context) bool {
	if c.info.GateChannel < 0 {
		log.Printf("[camera %s] canal de alarme não configurado, probe pulado", c.info.IP)
		return false
	}

	start := time.Now()
	attempt := 0
	for {
		attempt++
		if c.probeGateAlarmOnce(ctx) {
			log.Printf("[camera %s] alarme do portão ATIVO (tentativa %d)", c.info.IP, attempt)
			return true
		}
		if time.Since(start)+c.gateCheckInterval >= c.gateCheckWindow {
			break
		}
		select {
		case <-time.After(c.gateCheckInterval):
		case <-ctx.Done():
			return false
		}
	}

	log.Printf("[camera %s] alarme do portão inativo na janela de %s (%d tentativas)",
		c.info.IP, c.gateCheckWindow, attempt)
	return false
}

func (c *Connection) probeGateAlarmOnce(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	stateURL := fmt.Sprintf("http://%s/cgi-bin/alarm.cgi?action=getOutState", c.info.IP)
	resp, err := doDigest(probeCtx, c.client, stateURL, c.info.Username, c.info.Password)
	if err != nil {
		log.Printf("[camera %s] erro no getOutState: %v", c.info.IP, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[camera %s] getOutState status %d", c.info.IP, resp.StatusCode)
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		log.Printf("[camera %s] erro lendo getOutState: %v", c.info.IP, err)
		return false
	}

	content := strings.TrimSpace(string(body))
	value, ok := strings.CutPrefix(content, "result=")
	if !ok {
		log.Printf("[camera %s] resposta inesperada do getOutState: %q", c.info.IP, content)
		return false
	}
	raw, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		log.Printf("[camera %s] valor inválido no getOutState %q: %v", c.info.IP, content, err)
		return false
	}

	return (raw>>c.info.GateChannel)&1 == 1
}
