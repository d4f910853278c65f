package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultServer  = "http://localhost:8000"
	RequestTimeout = 30 * time.Second
	UserAgent      = "equipctl/1.0"
)

// ErrUnauthorized is wrapped by the *APIError of a 401 response.
var ErrUnauthorized = errors.New("invalid username or password")

type Dataset struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	UploadedAt time.Time   `json:"uploaded_at"`
	TotalCount int         `json:"total_count"`
	FileName   string      `json:"file_name"`
	Equipment  []Equipment `json:"equipment,omitempty"`
}

type Equipment struct {
	ID          int64    `json:"id"`
	Name        string   `json:"equipment_name"`
	Type        string   `json:"equipment_type"`
	Flowrate    *float64 `json:"flowrate"`
	Pressure    *float64 `json:"pressure"`
	Temperature *float64 `json:"temperature"`
}

type Summary struct {
	DatasetID        int64              `json:"dataset_id"`
	DatasetName      string             `json:"dataset_name"`
	TotalCount       int                `json:"total_count"`
	UploadedAt       time.Time          `json:"uploaded_at"`
	Averages         map[string]float64 `json:"averages"`
	Samples          map[string]int     `json:"samples"`
	TypeDistribution map[string]int     `json:"type_distribution"`
}

// Average returns the mean of a parameter and whether any row had a value
// for it. Servers that do not report samples are trusted as-is.
func (s Summary) Average(param string) (float64, bool) {
	avg := s.Averages[param]
	if s.Samples == nil {
		return avg, true
	}
	return avg, s.Samples[param] > 0
}

type Report struct {
	Filename string
	Content  []byte
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

type Client struct {
	baseURL    *url.URL
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a client for the API at server. Credentials are sent with
// every request using HTTP basic auth.
func New(server, username, password string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(server) == "" {
		server = DefaultServer
	}

	base, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", server)
	}

	c := &Client{
		baseURL:    base,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: RequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) log(level slog.Level, msg string, args ...any) {
	if c.logger != nil {
		c.logger.Log(context.Background(), level, msg, args...)
	}
}

func (c *Client) Datasets(ctx context.Context) ([]Dataset, error) {
	var out []Dataset
	if err := c.getJSON(ctx, "/datasets", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Summary(ctx context.Context, datasetID int64) (Summary, error) {
	var out Summary
	if err := c.getJSON(ctx, fmt.Sprintf("/datasets/%d/summary", datasetID), &out); err != nil {
		return Summary{}, err
	}
	return out, nil
}

func (c *Client) Equipment(ctx context.Context, datasetID int64) ([]Equipment, error) {
	var out []Equipment
	if err := c.getJSON(ctx, fmt.Sprintf("/datasets/%d/equipment", datasetID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Upload sends the CSV file at path. An empty name lets the server pick one.
func (c *Client) Upload(ctx context.Context, path, name string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return Dataset{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return Dataset{}, fmt.Errorf("read upload: %w", err)
	}
	if name = strings.TrimSpace(name); name != "" {
		if err := writer.WriteField("name", name); err != nil {
			return Dataset{}, fmt.Errorf("write name field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return Dataset{}, fmt.Errorf("close form: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/upload", body, writer.FormDataContentType())
	if err != nil {
		return Dataset{}, err
	}
	defer resp.Body.Close()

	var out Dataset
	if err := decodeEnvelope(resp.Body, &out); err != nil {
		return Dataset{}, err
	}

	c.log(slog.LevelDebug, "dataset uploaded", "dataset_id", out.ID, "rows", out.TotalCount)
	return out, nil
}

func (c *Client) Report(ctx context.Context, datasetID int64) (Report, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/datasets/%d/pdf", datasetID), nil, "")
	if err != nil {
		return Report{}, err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return Report{}, fmt.Errorf("read report: %w", err)
	}

	filename := fmt.Sprintf("equipment_report_%d.pdf", datasetID)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if fn := filepath.Base(params["filename"]); fn != "" && fn != "." && fn != "/" {
			filename = fn
		}
	}

	return Report{Filename: filename, Content: content}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp.Body, out)
}

// do performs the request and turns any non-2xx answer into an *APIError.
// On success the caller owns the response body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	target := c.baseURL.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	c.log(slog.LevelDebug, "api request", "method", method, "path", path, "status", resp.StatusCode, "took", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}

	return resp, nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}

	return apiErr
}

func decodeEnvelope(r io.Reader, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return errors.New("decode response: missing data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
