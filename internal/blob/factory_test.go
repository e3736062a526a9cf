package blob

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
	"time"

	appcfg "github.com/Somchit-cmd/adminawaylog/internal/config"
	"github.com/google/uuid"
)

func TestNewBlobStoreLocalForced(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	store, mode, err := NewBlobStore(context.Background(), appcfg.BlobConfig{Mode: appcfg.BlobModeLocal}, logger)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if mode != appcfg.BlobModeLocal {
		t.Fatalf("expected mode=local, got %s", mode)
	}
	if store != nil {
		t.Fatal("expected nil store in local mode")
	}
	if !strings.Contains(buf.String(), "mode=local (forced)") {
		t.Fatalf("expected local mode log, got: %s", buf.String())
	}
}

func TestNewBlobStoreAutoNothingConfiguredFallsBackToLocal(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	store, mode, err := NewBlobStore(context.Background(), appcfg.BlobConfig{Mode: appcfg.BlobModeAuto}, logger)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if mode != appcfg.BlobModeLocal || store != nil {
		t.Fatalf("expected local fallback, got mode=%s store=%v", mode, store)
	}

	out := buf.String()
	for _, want := range []string{"code=s3_not_configured", "code=cloudinary_not_configured", "mode=local (auto, no remote store configured)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in log, got: %s", want, out)
		}
	}
}

func TestNewBlobStoreAutoPrefersCloudinaryWhenS3Missing(t *testing.T) {
	var buf bytes.Buffer
	store, mode, err := NewBlobStore(context.Background(), appcfg.BlobConfig{
		Mode: appcfg.BlobModeAuto,
		Cloudinary: appcfg.CloudinaryConfig{
			CloudName: "demo",
			APIKey:    "key",
			APISecret: "secret",
			Folder:    "adminawaylog",
		},
	}, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if mode != appcfg.BlobModeCloudinary {
		t.Fatalf("expected cloudinary, got %s (log: %s)", mode, buf.String())
	}
	if _, ok := store.(*CloudinaryStore); !ok {
		t.Fatalf("expected *CloudinaryStore, got %T", store)
	}
}

func TestNewBlobStoreS3MissingRequiredReturnsError(t *testing.T) {
	var buf bytes.Buffer
	store, mode, err := NewBlobStore(context.Background(), appcfg.BlobConfig{
		Mode: appcfg.BlobModeS3,
		S3:   appcfg.S3Config{Endpoint: "https://storage.yandexcloud.net"},
	}, log.New(&buf, "", 0))
	if err == nil {
		t.Fatal("expected error when mode=s3 and required env are missing")
	}
	if store != nil || mode != "" {
		t.Fatalf("expected nil store and empty mode on error, got store=%v mode=%q", store, mode)
	}
	if !strings.Contains(err.Error(), "missing required config") {
		t.Fatalf("expected missing required config error, got: %v", err)
	}
}

func TestNewBlobStoreCloudinaryMissingRequiredReturnsError(t *testing.T) {
	_, _, err := NewBlobStore(context.Background(), appcfg.BlobConfig{
		Mode:       appcfg.BlobModeCloudinary,
		Cloudinary: appcfg.CloudinaryConfig{CloudName: "demo"},
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "CLOUDINARY_API_KEY") {
		t.Fatalf("expected missing api key error, got %v", err)
	}
}

func TestPhotoKey(t *testing.T) {
	id := uuid.MustParse("3f0b7f3c-8f44-4a8c-9d35-1f2a3b4c5d6e")
	now := time.Date(2024, 2, 29, 23, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	if got := PhotoKey(now, id); got != "photos/2024/02/3f0b7f3c-8f44-4a8c-9d35-1f2a3b4c5d6e.jpg" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestCloudinaryPublicID(t *testing.T) {
	c := &CloudinaryStore{folder: "adminawaylog"}
	if got := c.publicID("photos/2024/02/abc.jpg"); got != "adminawaylog/photos/2024/02/abc" {
		t.Fatalf("unexpected public id %q", got)
	}
	c.folder = ""
	if got := c.publicID("/photos/x.jpg"); got != "photos/x" {
		t.Fatalf("unexpected public id %q", got)
	}
}

func TestS3PublicURL(t *testing.T) {
	s := &S3Store{publicBaseURL: "https://cdn.example.com/bucket", preferPublicURL: true}
	url, ok := s.PublicURL("photos/2024/02/a.jpg")
	if !ok || url != "https://cdn.example.com/bucket/photos/2024/02/a.jpg" {
		t.Fatalf("unexpected public url %q %t", url, ok)
	}
	s.preferPublicURL = false
	if _, ok := s.PublicURL("photos/a.jpg"); ok {
		t.Fatal("public url must not be offered unless preferred")
	}
}
