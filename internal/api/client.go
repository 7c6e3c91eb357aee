package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/warfare-dev/extension/pkg/core"
)

const (
	// UploadPath is where finished rotation files are posted.
	UploadPath = "/api/v1/rotations/add"
	// HealthPath answers 200 while the stats server accepts uploads.
	HealthPath = "/healthcheck"

	requestTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// Client talks to the stats web server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Healthcheck reports whether the stats server is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + HealthPath)
	if err != nil {
		return fmt.Errorf("healthcheck: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus("healthcheck", resp)
}

// Upload posts an exported rotation file with its metadata. The file is
// streamed into the multipart body rather than read up front.
func (c *Client) Upload(filePath string, meta core.UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open rotation file: %w", err)
	}
	defer file.Close()

	name := filepath.Base(filePath)
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeRotationForm(form, c.rotationFields(name, meta), name, file))
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+UploadPath, pr)
	if err != nil {
		_ = pr.Close()
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()
	return checkStatus("upload "+name, resp)
}

type formField struct{ key, value string }

func (c *Client) rotationFields(name string, meta core.UploadMetadata) []formField {
	return []formField{
		{"secret", c.apiKey},
		{"filename", name},
		{"mapName", meta.MapName},
		{"mode", meta.Mode},
		{"rotationDuration", strconv.FormatFloat(meta.RotationDuration, 'f', -1, 64)},
		{"winner", strconv.Itoa(int(meta.Winner))},
		{"tag", meta.Tag},
	}
}

func writeRotationForm(form *multipart.Writer, fields []formField, name string, body io.Reader) error {
	for _, f := range fields {
		if err := form.WriteField(f.key, f.value); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("copy rotation file: %w", err)
	}
	return form.Close()
}

// checkStatus turns a non-200 reply into an error carrying the start of
// the response body, which is where the server explains a rejection.
func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if text := strings.TrimSpace(string(msg)); text != "" {
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, text)
	}
	return fmt.Errorf("%s: status %d", op, resp.StatusCode)
}
