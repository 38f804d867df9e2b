// internal/watermark/watermark.go
package watermark

import (
	"bytes"
	"image/jpeg"
	"log"
	"math"

	"github.com/fogleman/gg"
)

// fontes de sistema tentadas em ordem; se nenhuma carregar, a fonte
// bitmap embutida do gg resolve
var systemFonts = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/Library/Fonts/Arial.ttf",
	"C:/Windows/Fonts/arial.ttf",
}

// Apply desenha o texto em diagonal, semitransparente, sobre o JPEG.
// Qualquer falha (bytes que não são JPEG, encode, etc.) devolve a
// imagem original: a notificação sai de qualquer jeito.
func Apply(imageData []byte, text string, opacity int) []byte {
	if len(imageData) == 0 || text == "" {
		return imageData
	}
	if opacity < 0 || opacity > 255 {
		opacity = 180
	}

	img, err := jpeg.Decode(bytes.NewReader(imageData))
	if err != nil {
		log.Printf("[watermark] imagem não decodificável, mantendo original: %v", err)
		return imageData
	}

	b := img.Bounds()
	w := float64(b.Dx())
	h := float64(b.Dy())

	dc := gg.NewContextForImage(img)

	fontSize := h * 0.10
	loaded := false
	for _, path := range systemFonts {
		if err := dc.LoadFontFace(path, fontSize); err == nil {
			loaded = true
			break
		}
	}
	if !loaded {
		log.Printf("[watermark] nenhuma fonte de sistema disponível, usando fonte embutida")
	}

	dc.SetRGBA255(255, 255, 255, opacity)
	dc.RotateAbout(gg.Radians(-45), w/2, h/2)
	dc.DrawStringAnchored(text, w/2, h/2, 0.5, 0.5)

	// contorno discreto pra manter legível em fundo claro
	dc.SetRGBA255(0, 0, 0, opacity/3)
	dc.DrawStringAnchored(text, w/2+math.Max(1, fontSize*0.02), h/2+math.Max(1, fontSize*0.02), 0.5, 0.5)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dc.Image(), &jpeg.Options{Quality: 90}); err != nil {
		log.Printf("[watermark] erro no encode, mantendo original: %v", err)
		return imageData
	}
	return out.Bytes()
}
