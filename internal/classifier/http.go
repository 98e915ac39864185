package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxResponseSize caps the detector response body.
const maxResponseSize = 1 << 20

// errBadHTTPStatus is returned for a non-2xx detector response.
var errBadHTTPStatus = errors.New("unexpected http status")

// HTTPDetector posts the raw image to an inference endpoint and decodes
// a {"labels":[{"name":"Cat","confidence":97.5}]} response.
type HTTPDetector struct {
	endpoint string
	client   *http.Client
}

// detectResponse is the JSON body returned by the endpoint.
type detectResponse struct {
	Labels []Label `json:"labels"`
}

// NewHTTPDetector creates a detector. A nil client falls back to http.DefaultClient.
func NewHTTPDetector(endpoint string, client *http.Client) *HTTPDetector {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPDetector{
		endpoint: endpoint,
		client:   client,
	}
}

// DetectLabels sends the image and returns the labels found in it.
func (d *HTTPDetector) DetectLabels(ctx context.Context, image []byte) ([]Label, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s", errBadHTTPStatus, resp.Status)
	}

	var body detectResponse
	if err = json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return body.Labels, nil
}
