package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

type smokeConfig struct {
	APIBase string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	Token   string        `env:"SMOKE_TOKEN"`
	DevAuth bool          `env:"SMOKE_DEV_AUTH" envDefault:"true"`
	Timeout time.Duration `env:"SMOKE_TIMEOUT" envDefault:"30s"`
}

var (
	cfg      smokeConfig
	client   *http.Client
	reportID string
	photoURL string
)

func main() {
	fmt.Println("=== Admin Away Log E2E Smoke Test ===")
	fmt.Println()

	if err := env.Parse(&cfg); err != nil {
		fmt.Printf("invalid smoke config: %v\n", err)
		os.Exit(2)
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	client = &http.Client{
		Timeout: cfg.Timeout,
		// photo endpoint may redirect to blob storage; report the redirect itself
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	fmt.Printf("API Base: %s\n", cfg.APIBase)
	fmt.Printf("Token: %s\n", maskString(cfg.Token))
	fmt.Println()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"Healthz", testHealthz},
		{"Dev Auth", testDevAuth},
		{"Photo Preview", testPreview},
		{"Submit Report", testSubmit},
		{"List Reports", testList},
		{"Get Report", testGet},
		{"Get Photo", testPhoto},
		{"Analytics", testAnalytics},
		{"Map Trail", testMap},
		{"Export PDF", testExportPDF},
		{"Export Cooldown", testExportCooldown},
	}

	failed := false
	for i, step := range steps {
		fmt.Printf("[%d/%d] %s... ", i+1, len(steps), step.name)
		if err := step.fn(); err != nil {
			fmt.Printf("❌ FAILED\n")
			fmt.Printf("  Error: %v\n\n", err)
			failed = true
			break
		}
		fmt.Printf("✅ OK\n")
	}

	fmt.Println()
	if failed {
		fmt.Println("❌ SMOKE TEST FAILED")
		os.Exit(1)
	}

	fmt.Println("✅ ALL SMOKE TESTS PASSED")
}

func testHealthz() error {
	_, err := do("GET", "/healthz", nil, "", http.StatusOK)
	return err
}

func testDevAuth() error {
	if cfg.Token != "" || !cfg.DevAuth {
		return nil
	}
	body, err := do("POST", "/v1/auth/dev", nil, "", http.StatusOK, http.StatusNotFound)
	if err != nil {
		return err
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if json.Unmarshal(body, &tok) == nil {
		cfg.Token = tok.AccessToken
	}
	return nil
}

func testPreview() error {
	form, ct, err := reportForm(false)
	if err != nil {
		return err
	}
	body, err := do("POST", "/v1/photos/preview", form, ct, http.StatusOK)
	if err != nil {
		return err
	}
	var result struct {
		Width          int    `json:"width"`
		PreviewDataURI string `json:"preview_data_uri"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	if result.Width <= 0 || !strings.HasPrefix(result.PreviewDataURI, "data:image/jpeg;base64,") {
		return fmt.Errorf("unexpected preview width=%d", result.Width)
	}
	return nil
}

func testSubmit() error {
	form, ct, err := reportForm(true)
	if err != nil {
		return err
	}
	body, err := do("POST", "/v1/reports", form, ct, http.StatusCreated)
	if err != nil {
		return err
	}
	var result struct {
		ID       string `json:"id"`
		PhotoURL string `json:"photo_url"`
		Duration string `json:"duration"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	if result.Duration != "1 h 30 min" {
		return fmt.Errorf("unexpected duration %q", result.Duration)
	}
	reportID = result.ID
	photoURL = result.PhotoURL
	return nil
}

func testList() error {
	body, err := do("GET", "/v1/reports?q=smoke", nil, "", http.StatusOK)
	if err != nil {
		return err
	}
	var result struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	if result.Count == 0 {
		return fmt.Errorf("submitted report not listed")
	}
	return nil
}

func testGet() error {
	_, err := do("GET", "/v1/reports/"+reportID, nil, "", http.StatusOK)
	return err
}

func testPhoto() error {
	_, err := do("GET", photoURL, nil, "", http.StatusOK, http.StatusFound)
	return err
}

func testAnalytics() error {
	body, err := do("GET", "/v1/reports/analytics?breakdown=vehicle", nil, "", http.StatusOK)
	if err != nil {
		return err
	}
	var result struct {
		Summary struct {
			TotalCount int `json:"total_count"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	if result.Summary.TotalCount == 0 {
		return fmt.Errorf("analytics reports zero reports")
	}
	return nil
}

func testMap() error {
	_, err := do("GET", "/v1/reports/map?q=smoke", nil, "", http.StatusOK)
	return err
}

func testExportPDF() error {
	body, err := do("GET", "/v1/reports/export?format=pdf&q=smoke", nil, "", http.StatusOK)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		return fmt.Errorf("response is not a PDF (%d bytes)", len(body))
	}
	return nil
}

func testExportCooldown() error {
	_, err := do("GET", "/v1/reports/export?format=csv&q=smoke", nil, "", http.StatusTooManyRequests)
	return err
}

func do(method, path string, body io.Reader, contentType string, want ...int) ([]byte, error) {
	req, err := http.NewRequest(method, cfg.APIBase+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	addAuth(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	for _, code := range want {
		if resp.StatusCode == code {
			return data, nil
		}
	}
	return nil, fmt.Errorf("status=%d body=%.4096s", resp.StatusCode, string(data))
}

// reportForm builds the submit form; preview only needs the photo.
func reportForm(withFields bool) (*bytes.Buffer, string, error) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var pngData bytes.Buffer
	if err := png.Encode(&pngData, img); err != nil {
		return nil, "", err
	}

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	if withFields {
		now := time.Now().UTC().Truncate(time.Minute)
		fields := map[string]string{
			"user_name": "Smoke Tester",
			"purpose":   "smoke check",
			"vehicle":   "Van 7",
			"time_out":  now.Add(-90 * time.Minute).Format(time.RFC3339),
			"time_in":   now.Format(time.RFC3339),
			"latitude":  "17.9757",
			"longitude": "102.6331",
			"notes":     "created by cmd/smoke",
		}
		for k, v := range fields {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
	}
	part, err := w.CreateFormFile("photo", "smoke.png")
	if err != nil {
		return nil, "", err
	}
	part.Write(pngData.Bytes())
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &b, w.FormDataContentType(), nil
}

func addAuth(req *http.Request) {
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
