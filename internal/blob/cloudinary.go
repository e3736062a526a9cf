package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	appcfg "github.com/Somchit-cmd/adminawaylog/internal/config"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore keeps photos as Cloudinary image assets. Delivery URLs are public,
// so PresignGet ignores the TTL.
type CloudinaryStore struct {
	cld        *cloudinary.Cloudinary
	folder     string
	httpClient *http.Client
}

func NewCloudinaryStore(cfg appcfg.CloudinaryConfig) (*CloudinaryStore, error) {
	if missing := cfg.MissingRequired(); len(missing) > 0 {
		return nil, fmt.Errorf("cloudinary configuration incomplete: missing %s", strings.Join(missing, ", "))
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to init cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryStore{
		cld:        cld,
		folder:     strings.Trim(cfg.Folder, "/"),
		httpClient: http.DefaultClient,
	}, nil
}

// publicID maps an object key to a Cloudinary public ID (no extension).
func (c *CloudinaryStore) publicID(key string) string {
	id := strings.TrimSuffix(strings.TrimLeft(key, "/"), path.Ext(key))
	if c.folder == "" {
		return id
	}
	return c.folder + "/" + id
}

func (c *CloudinaryStore) PutObject(ctx context.Context, key string, data []byte, _ string) (int64, error) {
	res, err := c.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     c.publicID(key),
		ResourceType: "image",
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload to cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return 0, fmt.Errorf("cloudinary upload rejected: %s", res.Error.Message)
	}
	return int64(len(data)), nil
}

func (c *CloudinaryStore) deliveryURL(key string) (string, error) {
	img, err := c.cld.Image(c.publicID(key))
	if err != nil {
		return "", fmt.Errorf("failed to build cloudinary asset: %w", err)
	}
	url, err := img.String()
	if err != nil {
		return "", fmt.Errorf("failed to build delivery url: %w", err)
	}
	return url, nil
}

func (c *CloudinaryStore) PresignGet(_ context.Context, key string, _ int) (string, error) {
	return c.deliveryURL(key)
}

func (c *CloudinaryStore) PublicURL(key string) (string, bool) {
	url, err := c.deliveryURL(key)
	if err != nil {
		return "", false
	}
	return url, true
}

func (c *CloudinaryStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	url, err := c.deliveryURL(key)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get object: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *CloudinaryStore) DeleteObject(ctx context.Context, key string) error {
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: c.publicID(key)})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	if res.Error.Message != "" {
		return errors.New("cloudinary destroy rejected: " + res.Error.Message)
	}
	return nil
}
