// internal/notify/format.go
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/okchi8/anpr-gate/internal/vip"
)

// FormatVIPCaption monta a legenda da notificação de veículo VIP, no
// formato que os moradores já recebem.
func FormatVIPCaption(plate string, rec vip.Record, ts time.Time, cameraIP string) string {
	return strings.Join([]string{
		"✨ VIP Vehicle Detected! ✨",
		fmt.Sprintf("🚗 Plate: %s", plate),
		fmt.Sprintf("👤 Owner: %s", orNA(rec.OwnerName)),
		fmt.Sprintf("🏠 House: %s", orNA(rec.HouseNumber)),
		fmt.Sprintf("🏷️ Type: %s", orNA(rec.Type)),
		fmt.Sprintf("⏰ Time: %s", ts.Format("2006-01-02 15:04:05")),
		fmt.Sprintf("📷 Camera: %s", cameraIP),
	}, "\n")
}

// ImageFilename gera o nome do anexo a partir da placa e do instante.
func ImageFilename(plate string, ts time.Time) string {
	return fmt.Sprintf("%s_%d.jpg", strings.ReplaceAll(plate, " ", "_"), ts.Unix())
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
