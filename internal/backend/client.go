// Package backend implements the HTTP client for the Forge pipeline API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"forgesync/internal/config"
	"forgesync/internal/logging"
)

const userAgent = "forgesync/0.1.0"

// APIError is a non-2xx response from the backend, with the server's error
// message when one was provided.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// Client talks to the backend HTTP surface.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// New builds a backend client from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Client {
	timeout := time.Duration(cfg.Backend.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.Backend.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(logging.String(logging.FieldComponent, "backend")),
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health probes the root liveness endpoint. Callers bound the probe with
// their own context deadline.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.getJSON(ctx, "/", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// AIHealth reports the secondary AI provider's availability. Informational
// only; never gates reachability.
func (c *Client) AIHealth(ctx context.Context) (*AIHealthStatus, error) {
	var status AIHealthStatus
	if err := c.getJSON(ctx, "/api/health/ai", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Upload stores a single file on the backend and returns its upload id.
func (c *Client) Upload(ctx context.Context, file File) (*UploadResult, error) {
	body, contentType, err := encodeMultipart(func(w *multipart.Writer) error {
		return writeFilePart(w, "file", file)
	})
	if err != nil {
		return nil, err
	}

	var result UploadResult
	if err := c.postDecode(ctx, "/api/uploads", contentType, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Encapsulate creates an embed-direction job from target files, a carrier
// image, and an options JSON document.
func (c *Client) Encapsulate(ctx context.Context, targets []File, carrier File, options json.RawMessage) (*SubmitResult, error) {
	if len(options) == 0 {
		options = json.RawMessage("{}")
	}

	body, contentType, err := encodeMultipart(func(w *multipart.Writer) error {
		for _, target := range targets {
			if err := writeFilePart(w, "target_files", target); err != nil {
				return err
			}
		}
		if err := writeFilePart(w, "carrier_image", carrier); err != nil {
			return err
		}
		return w.WriteField("options", string(options))
	})
	if err != nil {
		return nil, err
	}

	var result SubmitResult
	if err := c.postDecode(ctx, "/api/encapsulate", contentType, body, &result); err != nil {
		return nil, err
	}
	c.logger.Info("encapsulation job created", logging.String(logging.FieldJobID, result.JobID))
	return &result, nil
}

// Job polls one job by id.
func (c *Client) Job(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.getJSON(ctx, "/api/job/"+url.PathEscape(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Jobs lists recent jobs, newest first. A zero limit uses the server default;
// an empty status returns all. Terminal "error" states are reported as
// "failed" to match the list endpoint's convention.
func (c *Client) Jobs(ctx context.Context, limit int, status string) ([]Job, error) {
	path := "/api/jobs"
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if status != "" {
		query.Set("status", status)
	}
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var response struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.getJSON(ctx, path, &response); err != nil {
		return nil, err
	}
	for i := range response.Jobs {
		if response.Jobs[i].Status == "error" {
			response.Jobs[i].Status = "failed"
		}
	}
	return response.Jobs, nil
}

// Download fetches the completed artifact for a job. The returned name comes
// from the Content-Disposition header when present.
func (c *Client) Download(ctx context.Context, id string) ([]byte, string, error) {
	return c.getFile(ctx, "/api/download/"+url.PathEscape(id))
}

// Extract creates an extraction job for a package file.
func (c *Client) Extract(ctx context.Context, pkg File, passphrase string) (*SubmitResult, error) {
	body, contentType, err := encodeMultipart(func(w *multipart.Writer) error {
		if err := writeFilePart(w, "package", pkg); err != nil {
			return err
		}
		return w.WriteField("passphrase", passphrase)
	})
	if err != nil {
		return nil, err
	}

	var result SubmitResult
	if err := c.postDecode(ctx, "/api/extract", contentType, body, &result); err != nil {
		return nil, err
	}
	c.logger.Info("extraction job created", logging.String(logging.FieldJobID, result.JobID))
	return &result, nil
}

// ExtractStatus polls one extraction job by id.
func (c *Client) ExtractStatus(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.getJSON(ctx, "/api/extract/status/"+url.PathEscape(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ExtractDownload fetches one named output file of an extraction job.
func (c *Client) ExtractDownload(ctx context.Context, id, name string) ([]byte, string, error) {
	return c.getFile(ctx, "/api/extract/download/"+url.PathEscape(id)+"/"+url.PathEscape(name))
}

// ScanCarrier checks whether an uploaded carrier matches a registered
// payload signature.
func (c *Client) ScanCarrier(ctx context.Context, carrierFileID string) (*ScanResult, error) {
	payload, err := json.Marshal(map[string]string{"carrierFileId": carrierFileID})
	if err != nil {
		return nil, fmt.Errorf("encode scan request: %w", err)
	}

	var result ScanResult
	if err := c.postDecode(ctx, "/api/scan", "application/json", bytes.NewReader(payload), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GeometricKey fetches the polytope key material for a completed job.
func (c *Client) GeometricKey(ctx context.Context, id string) (*GeometricKeyResult, error) {
	var result GeometricKeyResult
	if err := c.getJSON(ctx, "/api/geometric/key/"+url.PathEscape(id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response for %s: %w", path, err)
	}
	return nil
}

func (c *Client) postDecode(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response for %s: %w", path, err)
	}
	return nil
}

func (c *Client) getFile(ctx context.Context, path string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, "", err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response for %s: %w", path, err)
	}

	name := ""
	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			name = params["filename"]
		}
	}
	return data, name, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var wire struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error != "" {
		apiErr.Message = wire.Error
	} else if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		apiErr.Message = trimmed
	}
	return apiErr
}

func encodeMultipart(build func(*multipart.Writer) error) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := build(writer); err != nil {
		return nil, "", fmt.Errorf("encode multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, field string, file File) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, file.Name))
	contentType := file.MIME
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create part %s: %w", field, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("write part %s: %w", field, err)
	}
	return nil
}
