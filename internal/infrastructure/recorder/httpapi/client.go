// Package httpapi talks to the recorder over its HTTP/JSON control API.
package httpapi

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/garyjia/recordlight/internal/domain/recorder"
)

// Config holds the recorder endpoint settings
type Config struct {
	BaseURL string
	Timeout time.Duration

	// CAFile is an optional PEM bundle trusted in addition to the system pool
	CAFile string
}

// Client implements port.Recorder against the recorder's HTTP API
type Client struct {
	base string
	http *http.Client
}

// New creates a client. Certificates are always verified.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("recorder base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid recorder base url: %w", err)
	}

	tlsConfig, err := tlsConfig(cfg.CAFile)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

func tlsConfig(caFile string) (*tls.Config, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read recorder ca file: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", caFile)
		}
	}

	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    pool,
	}, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

type recordingResponse struct {
	Recording *recorder.Recording `json:"recording"`
}

type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// GetStatus returns the recorder status. Unrecognized values map to StatusUnknown.
func (c *Client) GetStatus(ctx context.Context) (recorder.Status, error) {
	var p statusResponse
	if err := c.get(ctx, "/api/status", &p); err != nil {
		return recorder.StatusUnknown, err
	}
	return recorder.ParseStatus(p.Status), nil
}

// GetCurrentRecording returns the active recording or nil
func (c *Client) GetCurrentRecording(ctx context.Context) (*recorder.Recording, error) {
	return c.recording(ctx, "/api/recordings/current")
}

// GetNextRecording returns the next scheduled recording or nil
func (c *Client) GetNextRecording(ctx context.Context) (*recorder.Recording, error) {
	return c.recording(ctx, "/api/recordings/next")
}

func (c *Client) recording(ctx context.Context, path string) (*recorder.Recording, error) {
	var p recordingResponse
	if err := c.get(ctx, path, &p); err != nil {
		return nil, err
	}
	if p.Recording == nil || p.Recording.ID == "" {
		return nil, nil
	}
	return p.Recording, nil
}

// StartNew starts an unscheduled recording
func (c *Client) StartNew(ctx context.Context) (bool, error) {
	return c.post(ctx, "/api/recordings")
}

// StartNext starts the scheduled recording id
func (c *Client) StartNext(ctx context.Context, id string) (bool, error) {
	return c.action(ctx, id, "start")
}

// Stop stops recording id
func (c *Client) Stop(ctx context.Context, id string) (bool, error) {
	return c.action(ctx, id, "stop")
}

// Pause pauses recording id
func (c *Client) Pause(ctx context.Context, id string) (bool, error) {
	return c.action(ctx, id, "pause")
}

// Resume resumes recording id
func (c *Client) Resume(ctx context.Context, id string) (bool, error) {
	return c.action(ctx, id, "resume")
}

// Extend extends recording id
func (c *Client) Extend(ctx context.Context, id string) (bool, error) {
	return c.action(ctx, id, "extend")
}

func (c *Client) action(ctx context.Context, id, verb string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("%s: recording id is required", verb)
	}
	return c.post(ctx, "/api/recordings/"+url.PathEscape(id)+"/"+verb)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNoContent {
		return nil
	}
	if res.StatusCode != http.StatusOK {
		return statusError(http.MethodGet, path, res)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// post issues a control call. A 4xx answer with a body is a business failure;
// 5xx and transport errors are errors.
func (c *Client) post(ctx context.Context, path string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusInternalServerError {
		return false, statusError(http.MethodPost, path, res)
	}

	var p actionResponse
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		if res.StatusCode >= http.StatusBadRequest {
			return false, statusError(http.MethodPost, path, res)
		}
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return p.Success && res.StatusCode < http.StatusBadRequest, nil
}

func statusError(method, path string, res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("%s %s: %s", method, path, res.Status)
	}
	return fmt.Errorf("%s %s: %s: %s", method, path, res.Status, msg)
}
