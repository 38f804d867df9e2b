// cmd/gate-probe/main.go
//
// Utilitário de debug: consulta uma vez o estado da saída de alarme do
// portão de uma câmera, sem subir o serviço inteiro.
//
//	go run ./cmd/gate-probe -ip 192.168.1.106 -user admin -pass secret -channel 0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/okchi8/anpr-gate/internal/camera"
	"github.com/okchi8/anpr-gate/internal/core"
)

func main() {
	ip := flag.String("ip", "", "IP da câmera")
	user := flag.String("user", "admin", "usuário")
	pass := flag.String("pass", "", "senha")
	channel := flag.Int("channel", 0, "índice do canal de alarme")
	window := flag.Duration("window", 2*time.Second, "janela de polling")
	flag.Parse()

	if *ip == "" {
		log.Println("uso: gate-probe -ip <câmera> [-user u] [-pass p] [-channel n]")
		os.Exit(2)
	}

	conn := camera.NewConnection(core.CameraInfo{
		IP:          *ip,
		Username:    *user,
		Password:    *pass,
		GateChannel: *channel,
	}, camera.NewQueue())
	conn.SetGateCheckWindow(*window, 500*time.Millisecond)

	active := conn.GateAlarmActive(context.Background())
	fmt.Printf("camera=%s channel=%d active=%v\n", *ip, *channel, active)
	if !active {
		os.Exit(1)
	}
}
