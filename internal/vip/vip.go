// internal/vip/vip.go
package vip

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Record é uma linha da lista VIP.
type Record struct {
	PlateNumber string
	OwnerName   string
	HouseNumber string
	LandNumber  string
	ChatID      string
	Type        string
}

var expectedHeaders = []string{"plate_number", "owner_name", "house_number", "land_number", "chat_id", "type"}

// Manager carrega a lista VIP de um CSV e responde lookups por placa
// (case-insensitive). Refresh recarrega o arquivo em quente.
type Manager struct {
	csvPath string

	mu   sync.RWMutex
	data map[string]Record
}

func NewManager(csvPath string) *Manager {
	m := &Manager{csvPath: csvPath, data: map[string]Record{}}
	if err := m.Refresh(); err != nil {
		// lista ausente/quebrada não derruba o serviço, só fica vazia
		log.Printf("[vip] erro carregando lista: %v", err)
	} else {
		log.Printf("[vip] %d registros carregados de %s", m.Len(), csvPath)
	}
	return m
}

// Lookup busca a placa na lista. Placa é normalizada pra maiúsculas.
func (m *Manager) Lookup(plate string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[strings.ToUpper(strings.TrimSpace(plate))]
	return rec, ok
}

// Len devolve quantos registros estão carregados.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Refresh relê o CSV. Em caso de erro a lista fica vazia, nunca com
// dados parciais. Roda a cada detecção, então não loga o caso feliz.
func (m *Manager) Refresh() error {
	data, err := loadCSV(m.csvPath)

	m.mu.Lock()
	if err != nil {
		m.data = map[string]Record{}
	} else {
		m.data = data
	}
	m.mu.Unlock()

	return err
}

func loadCSV(path string) (map[string]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("abrindo lista VIP: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("lendo header da lista VIP: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		// tolera BOM no primeiro campo (planilhas exportadas do Excel)
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, want := range expectedHeaders {
		if _, ok := idx[want]; !ok {
			return nil, fmt.Errorf("header da lista VIP incorreto: falta %q (headers: %v)", want, header)
		}
	}

	data := make(map[string]Record)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("lendo lista VIP: %w", err)
		}

		get := func(name string) string {
			i := idx[name]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		plate := get("plate_number")
		if plate == "" {
			log.Printf("[vip] linha sem plate_number ignorada: %v", row)
			continue
		}

		data[strings.ToUpper(plate)] = Record{
			PlateNumber: plate,
			OwnerName:   get("owner_name"),
			HouseNumber: get("house_number"),
			LandNumber:  get("land_number"),
			ChatID:      get("chat_id"),
			Type:        get("type"),
		}
	}

	return data, nil
}
