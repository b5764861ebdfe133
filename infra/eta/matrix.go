package eta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kilianp07/eventrescue/core/model"
)

// ErrUnavailable indicates the matrix service could not produce an estimate.
var ErrUnavailable = errors.New("eta: estimate unavailable")

// MatrixConfig holds the distance matrix client settings.
type MatrixConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Matrix fetches travel estimates from a Google-style distance matrix API.
type Matrix struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewMatrix creates a distance matrix estimator.
func NewMatrix(cfg MatrixConfig) *Matrix {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Matrix{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type matrixResponse struct {
	Rows []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration struct {
				Value int64 `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

func (m *Matrix) Estimate(ctx context.Context, origin, dest model.GeoPoint) (time.Duration, error) {
	q := url.Values{}
	q.Set("origins", fmt.Sprintf("%f,%f", origin.Lat, origin.Lng))
	q.Set("destinations", fmt.Sprintf("%f,%f", dest.Lat, dest.Lng))
	if m.apiKey != "" {
		q.Set("key", m.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var body matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if len(body.Rows) == 0 || len(body.Rows[0].Elements) == 0 {
		return 0, ErrUnavailable
	}
	el := body.Rows[0].Elements[0]
	if el.Status != "" && el.Status != "OK" {
		return 0, fmt.Errorf("%w: element status %s", ErrUnavailable, el.Status)
	}
	return time.Duration(el.Duration.Value) * time.Second, nil
}
