package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// ============================================================
// API CLIENT - Reusable HTTP client for the attendance backend
// ============================================================

// Observer is told about every completed backend call.
type Observer func(call string, statusCode int, elapsed time.Duration)

type APIClient struct {
	BaseURL   string
	Timeout   time.Duration
	client    *http.Client
	secretKey string
	observer  Observer
}

// NewAPIClient creates a new API client instance
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// SetSecretKey makes every request carry X-Secret-Key.
func (c *APIClient) SetSecretKey(key string) {
	c.secretKey = key
}

// SetObserver installs a hook called after every request, success or not.
func (c *APIClient) SetObserver(o Observer) {
	c.observer = o
}

// IsSuccessStatusCode checks if the HTTP status code indicates success
func (c *APIClient) IsSuccessStatusCode(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// SendRequest sends a request to the backend and returns the raw body and
// status. A non-nil error means the exchange itself failed; HTTP error
// statuses are returned as a status code, not an error.
func (c *APIClient) SendRequest(ctx context.Context, call, method, endpoint string, body io.Reader, contentType string) ([]byte, int, error) {
	url := c.BaseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req, contentType)

	log.Printf("📤 %s %s", method, endpoint)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.observe(call, 0, time.Since(start))
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.observe(call, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	return respBody, resp.StatusCode, nil
}

// SendMultipart encodes form as multipart/form-data and sends it.
func (c *APIClient) SendMultipart(ctx context.Context, call, method, endpoint string, form *MultipartForm) ([]byte, int, error) {
	buf, contentType, err := form.encode()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode form: %w", err)
	}
	return c.SendRequest(ctx, call, method, endpoint, buf, contentType)
}

func (c *APIClient) observe(call string, statusCode int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(call, statusCode, elapsed)
	}
}

// setHeaders sets required headers for the API request
func (c *APIClient) setHeaders(req *http.Request, contentType string) {
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", "attendance-kiosk/1.0")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.secretKey != "" {
		req.Header.Set("X-Secret-Key", c.secretKey)
	}
}

// ParseResponse unmarshals JSON response into provided struct
func (c *APIClient) ParseResponse(body []byte, result interface{}) error {
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// LogResponse logs the raw response if it's small enough
func (c *APIClient) LogResponse(call string, body []byte, statusCode int) {
	if c.IsSuccessStatusCode(statusCode) {
		log.Printf("✅ %s: %d", call, statusCode)
	} else {
		log.Printf("⚠️  %s: %d", call, statusCode)
	}

	if len(body) > 0 && len(body) < 1000 {
		log.Printf("📥 Raw response: %s", strings.TrimSpace(string(body)))
	}
}

// ============================================================
// MULTIPART FORMS
// ============================================================

type formField struct {
	name  string
	value string
}

type formFile struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

// MultipartForm collects fields and files in insertion order.
type MultipartForm struct {
	fields []formField
	files  []formFile
}

func NewMultipartForm() *MultipartForm {
	return &MultipartForm{}
}

func (f *MultipartForm) Field(name, value string) *MultipartForm {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

func (f *MultipartForm) File(field, filename, contentType string, data []byte) *MultipartForm {
	f.files = append(f.files, formFile{field: field, filename: filename, contentType: contentType, data: data})
	return f
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (f *MultipartForm) encode() (*bytes.Buffer, string, error) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	for _, field := range f.fields {
		if err := w.WriteField(field.name, field.value); err != nil {
			return nil, "", err
		}
	}

	for _, file := range f.files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(file.field), quoteEscaper.Replace(file.filename)))
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
