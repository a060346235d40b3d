package doorcam

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPFrameSource fetches camera frames from a snapshot endpoint.
type HTTPFrameSource struct {
	url    string
	client *http.Client
}

// NewHTTPFrameSource creates a frame source against a camera snapshot
// URL. Request deadlines come from the caller's context.
func NewHTTPFrameSource(url string) *HTTPFrameSource {
	return &HTTPFrameSource{url: url, client: &http.Client{}}
}

// Capture fetches one frame.
func (s *HTTPFrameSource) Capture(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building snapshot request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// HTTPClassifier posts frames to a face classification service that
// responds with a plain-text label.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

// NewHTTPClassifier creates a classifier against the given service URL.
func NewHTTPClassifier(url string) *HTTPClassifier {
	return &HTTPClassifier{url: url, client: &http.Client{}}
}

// Classify labels one frame.
func (c *HTTPClassifier) Classify(ctx context.Context, frame []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(frame))
	if err != nil {
		return "", fmt.Errorf("building classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifying frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("classifier returned %d", resp.StatusCode)
	}

	label, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading classifier response: %w", err)
	}
	return strings.TrimSpace(string(label)), nil
}
