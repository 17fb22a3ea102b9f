package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"defect-service/internal/service"
)

type detectResponse struct {
	Detections []struct {
		Class      string  `json:"class"`
		Confidence float64 `json:"confidence"`
		BBox       [4]int  `json:"bbox"`
	} `json:"detections"`
}

// DetectorClient invokes an external model server over HTTP. The model
// runtime itself (weights, framework) is entirely behind this boundary.
type DetectorClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewDetectorClient(baseURL string) *DetectorClient {
	return &DetectorClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Detect posts a JPEG frame and returns the raw detections. Connection
// failures and non-200 replies surface as ErrModelUnavailable so ingestion
// can skip the frame without treating it as fatal.
func (c *DetectorClient) Detect(ctx context.Context, frameJPEG []byte) ([]service.RawDetection, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: model server URL is not configured", service.ErrModelUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/detect", bytes.NewReader(frameJPEG))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: model server returned status %d: %s", service.ErrModelUnavailable, resp.StatusCode, string(body))
	}

	var parsed detectResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	detections := make([]service.RawDetection, 0, len(parsed.Detections))
	for _, d := range parsed.Detections {
		detections = append(detections, service.RawDetection{
			Class:      d.Class,
			Confidence: d.Confidence,
			BBox: service.BoundingBox{
				X1: d.BBox[0], Y1: d.BBox[1], X2: d.BBox[2], Y2: d.BBox[3],
			},
		})
	}

	return detections, nil
}
