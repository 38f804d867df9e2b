// internal/storage/minio_store.go
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/okchi8/anpr-gate/internal/core"
)

// SnapshotArchive guarda a imagem de cada detecção pra auditoria
// posterior (a fila em memória não sobrevive a restart).
type SnapshotArchive interface {
	SaveDetection(ctx context.Context, evt core.DetectionEvent) (string, error)
}

type MinioArchive struct {
	client  *minio.Client
	bucket  string
	baseURL *url.URL
	useSSL  bool
}

// NewMinioArchiveFromEnv monta o archive a partir de:
//
//	MINIO_ENDPOINT (default localhost:9000)
//	MINIO_ACCESS_KEY / MINIO_SECRET_KEY (obrigatórios)
//	MINIO_BUCKET (default anpr-detections)
//	MINIO_USE_SSL, MINIO_PUBLIC_BASE_URL (opcionais)
func NewMinioArchiveFromEnv() (*MinioArchive, error) {
	endpoint := getenv("MINIO_ENDPOINT", "localhost:9000")
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	bucket := getenv("MINIO_BUCKET", "anpr-detections")
	useSSL := getenv("MINIO_USE_SSL", "false") == "true"
	base := getenv("MINIO_PUBLIC_BASE_URL", "")

	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("MINIO_ACCESS_KEY / MINIO_SECRET_KEY não configurados")
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("erro criando cliente MinIO: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// cria o bucket se não existir
	err = cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	if err != nil {
		exists, errBucketExists := cli.BucketExists(ctx, bucket)
		if errBucketExists != nil || !exists {
			return nil, fmt.Errorf("erro criando/verificando bucket %s: %w", bucket, err)
		}
	}

	var u *url.URL
	if base != "" {
		u, err = url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("MINIO_PUBLIC_BASE_URL inválida: %w", err)
		}
	}

	log.Printf("[minio] conectado ao endpoint %s, bucket=%s", endpoint, bucket)

	return &MinioArchive{
		client:  cli,
		bucket:  bucket,
		baseURL: u,
		useSSL:  useSSL,
	}, nil
}

// SaveDetection sobe o JPEG da detecção e devolve a URL do objeto.
func (a *MinioArchive) SaveDetection(ctx context.Context, evt core.DetectionEvent) (string, error) {
	if len(evt.Image) == 0 {
		return "", fmt.Errorf("detecção sem imagem")
	}

	key := detectionKey(evt)
	_, err := a.client.PutObject(
		ctx,
		a.bucket,
		key,
		bytes.NewReader(evt.Image),
		int64(len(evt.Image)),
		minio.PutObjectOptions{ContentType: "image/jpeg"},
	)
	if err != nil {
		return "", fmt.Errorf("erro ao enviar detecção pro MinIO: %w", err)
	}

	if a.baseURL != nil {
		u := *a.baseURL
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + key
		return u.String(), nil
	}

	scheme := "http"
	if a.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, a.client.EndpointURL().Host, a.bucket, key), nil
}

// detectionKey: anpr/<ip>/<ano>/<mês>/<dia>/<placa>_<nanos>.jpg
func detectionKey(evt core.DetectionEvent) string {
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	plate := strings.ReplaceAll(strings.TrimSpace(evt.Plate), " ", "_")
	if plate == "" {
		plate = "sem_placa"
	}
	return fmt.Sprintf("anpr/%s/%04d/%02d/%02d/%s_%d.jpg",
		evt.CameraIP, ts.Year(), ts.Month(), ts.Day(), plate, ts.UnixNano())
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
