// internal/camera/parser.go
package camera

import (
	"bytes"
	"strconv"
	"strings"
)

// Part é um pedaço completo extraído do stream multipart da câmera.
type Part struct {
	ContentType string
	Body        []byte
}

var (
	crlf       = []byte("\r\n")
	headersEnd = []byte("\r\n\r\n")
)

// parseParts extrai todos os parts completos disponíveis em buf.
//
// A câmera entrega um multipart/x-mixed-replace sem fim: cada part começa
// no token de boundary ("--" + boundary do Content-Type), seguido de um
// bloco de headers e do corpo. Dois framings convivem no mesmo stream:
//
//   - Content-Length presente: o corpo termina exatamente N bytes depois
//     do bloco de headers (é assim que as imagens chegam);
//   - sem Content-Length: o corpo vai até a próxima ocorrência do token
//     de boundary. Esse framing assume que o corpo nunca contém a
//     sequência exata do boundary — comportamento herdado do protocolo
//     da câmera, não corrigimos aqui.
//
// Devolve os parts extraídos, o resto não consumido do buffer e se o
// marcador terminal (boundary + "--") foi visto. Todo o estado do parser
// é (buf, boundary): alimentar os mesmos bytes em chunks de qualquer
// tamanho produz a mesma sequência de parts.
func parseParts(buf, boundary []byte) (parts []Part, rest []byte, end bool) {
	terminal := append(append([]byte{}, boundary...), '-', '-')

	for {
		start := bytes.Index(buf, boundary)
		if start == -1 {
			// ainda não temos um boundary completo no buffer
			return parts, buf, false
		}

		if bytes.HasPrefix(buf[start:], terminal) {
			// fim limpo do stream
			return parts, nil, true
		}

		headerStart := start + len(boundary) + len(crlf)
		if headerStart > len(buf) {
			return parts, buf[start:], false
		}
		headerEnd := bytes.Index(buf[headerStart:], headersEnd)
		if headerEnd == -1 {
			// headers incompletos, espera mais dados
			return parts, buf[start:], false
		}
		headerEnd += headerStart

		contentType, contentLength := parsePartHeaders(buf[headerStart:headerEnd])

		bodyStart := headerEnd + len(headersEnd)

		var body []byte
		if contentLength >= 0 {
			if len(buf) < bodyStart+contentLength {
				// corpo incompleto (Content-Length declarado)
				return parts, buf[start:], false
			}
			body = buf[bodyStart : bodyStart+contentLength]
			buf = buf[bodyStart+contentLength:]
		} else {
			next := bytes.Index(buf[bodyStart:], boundary)
			if next == -1 {
				// sem Content-Length e sem próximo boundary ainda
				return parts, buf[start:], false
			}
			body = buf[bodyStart : bodyStart+next]
			// tira o CRLF que antecede o próximo boundary, pra que o corpo
			// seja idêntico independente do tamanho dos chunks recebidos
			body = bytes.TrimSuffix(body, crlf)
			buf = buf[bodyStart+next:]
		}

		// copia: o chamador reutiliza o buffer de leitura
		parts = append(parts, Part{
			ContentType: contentType,
			Body:        append([]byte{}, body...),
		})
	}
}

// parsePartHeaders lê o bloco de headers de um part. Content-Length
// ausente ou ilegível vira -1 (framing por boundary).
func parsePartHeaders(header []byte) (contentType string, contentLength int) {
	contentLength = -1
	for _, line := range strings.Split(string(header), "\r\n") {
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "content-type:"):
			contentType = strings.TrimSpace(line[len("content-type:"):])
		case strings.HasPrefix(lower, "content-length:"):
			v := strings.TrimSpace(line[len("content-length:"):])
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				contentLength = -1
				continue
			}
			contentLength = n
		}
	}
	return contentType, contentLength
}
