package extractor

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/biometric"
)

// Face is one face detected by the extraction service
type Face struct {
	Embedding []float32 `json:"embedding"`
	Quality   float64   `json:"quality"`
	Box       []int     `json:"box,omitempty"` // x1, y1, x2, y2
}

// Extraction is the result of running detection and embedding on one image
type Extraction struct {
	Model string `json:"model"`
	Faces []Face `json:"faces"`
}

// Probe turns the extraction into a match probe. With several faces the vector is
// left empty; the matcher rejects the probe on face count alone.
func (e *Extraction) Probe(claimed *uint, at time.Time) biometric.Probe {
	p := biometric.Probe{ClaimedSubject: claimed, FaceCount: len(e.Faces), At: at}
	for _, f := range e.Faces {
		if f.Quality > p.Quality {
			p.Quality = f.Quality
		}
	}
	if len(e.Faces) == 1 {
		p.Vector = e.Faces[0].Embedding
	}
	return p
}

type extractRequest struct {
	Image string `json:"image"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client talks to the external face embedding service
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{httpClient: httpClient, logger: logger.Named("extractor")}
}

// Extract sends an encoded image and returns the detected faces
func (c *Client) Extract(ctx context.Context, image []byte) (*Extraction, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image is empty")
	}

	var result Extraction
	var apiErr errorResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(extractRequest{Image: base64.StdEncoding.EncodeToString(image)}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/extract")
	if err != nil {
		c.logger.Error("extractor call failed", zap.Error(err))
		return nil, fmt.Errorf("failed to call extractor: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("extractor returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error", apiErr.Error),
		)
		return nil, fmt.Errorf("extractor error: %s (status: %d)", apiErr.Error, resp.StatusCode())
	}

	c.logger.Debug("extraction complete",
		zap.Int("faces", len(result.Faces)),
		zap.String("model", result.Model),
		zap.Duration("elapsed", resp.Time()),
	)
	return &result, nil
}
