// internal/camera/digest.go
package camera

import (
	"context"
	"crypto/md5"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// doDigest faz um GET com HTTP Digest por requisição: primeira tentativa
// sem Authorization só pra receber o challenge, segunda com a resposta
// MD5. Não reaproveita sessão entre chamadas.
func doDigest(ctx context.Context, client *http.Client, rawURL, username, password string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Connection", "keep-alive")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// 401 -> Digest
	authHeader := resp.Header.Get("WWW-Authenticate")
	_ = resp.Body.Close()
	digest, err := parseDigestAuthHeader(authHeader)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	nc := "00000001"
	cnonce := randomHex(16)
	ha1 := md5Hex(fmt.Sprintf("%s:%s:%s", username, digest.Realm, password))
	ha2 := md5Hex(fmt.Sprintf("%s:%s", http.MethodGet, u.RequestURI()))
	response := md5Hex(fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		ha1, digest.Nonce, nc, cnonce, digest.Qop, ha2,
	))

	authValue := fmt.Sprintf(
		`Digest username="%s", realm="%s", nonce="%s", uri="%s", algorithm=MD5, response="%s", qop=%s, nc=%s, cnonce="%s"`,
		username,
		digest.Realm,
		digest.Nonce,
		u.RequestURI(),
		response,
		digest.Qop,
		nc,
		cnonce,
	)

	req2, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req2.Header.Set("Connection", "keep-alive")
	req2.Header.Set("Authorization", authValue)

	return client.Do(req2)
}

type digestChallenge struct {
	Realm string
	Nonce string
	Qop   string
}

var digestRx = regexp.MustCompile(`(\w+)="([^"]+)"`)

func parseDigestAuthHeader(h string) (*digestChallenge, error) {
	if !strings.HasPrefix(strings.ToLower(h), "digest ") {
		return nil, fmt.Errorf("WWW-Authenticate não é Digest: %s", h)
	}
	h = strings.TrimSpace(h[len("Digest "):])
	m := digestRx.FindAllStringSubmatch(h, -1)
	res := &digestChallenge{}
	for _, kv := range m {
		if len(kv) != 3 {
			continue
		}
		switch strings.ToLower(kv[1]) {
		case "realm":
			res.Realm = kv[2]
		case "nonce":
			res.Nonce = kv[2]
		case "qop":
			res.Qop = kv[2]
		}
	}
	if res.Realm == "" || res.Nonce == "" {
		return nil, fmt.Errorf("realm/nonce ausentes em WWW-Authenticate: %s", h)
	}
	if res.Qop == "" {
		res.Qop = "auth"
	}
	return res, nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil {
		// fallback fraco, mas suficiente aqui
		for i := range b {
			b[i] = byte(rand.Intn(256))
		}
	}
	return hex.EncodeToString(b)
}
