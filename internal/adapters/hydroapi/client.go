package hydroapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/metrics"
)

// Endpoint paths on the hydrology service.
const (
	DelineatePath = "/api/watershedboundary/"
	ResourcesPath = "/api/osigeo/"
	LandCoverPath = "/api/fzs/"
)

// UpstreamError describes a failed call to the hydrology service.
// Status is the HTTP status code, or 0 for transport failures.
type UpstreamError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("hydrology %s: HTTP %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("hydrology %s: %v", e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Client calls the remote hydrology service: watershed boundary
// delineation, priority-water-resource analysis and fast zonal
// statistics. One HTTPS POST per call, no retries.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a hydrology client for the given base URL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// DelineateWatershed posts a drawn shape and returns the polygon
// enclosing all terrain draining to it.
func (c *Client) DelineateWatershed(ctx context.Context, geom domain.Geometry) (domain.Geometry, error) {
	if geom.Empty() {
		return domain.Geometry{}, domain.ErrEmptyGeometry
	}

	body, err := c.post(ctx, DelineatePath, geom)
	if err != nil {
		return domain.Geometry{}, err
	}

	var watershed domain.Geometry
	if err := json.Unmarshal(body, &watershed); err != nil {
		return domain.Geometry{}, &UpstreamError{Endpoint: DelineatePath, Err: fmt.Errorf("decode watershed: %w", err)}
	}
	if watershed.Empty() || watershed.GeoJSONType() != domain.GeometryPolygon {
		return domain.Geometry{}, &UpstreamError{Endpoint: DelineatePath, Err: errors.New("response is not a Polygon")}
	}
	return watershed, nil
}

// PriorityWaterResources posts a watershed polygon and returns its
// priority-water-resource measures.
func (c *Client) PriorityWaterResources(ctx context.Context, watershed domain.Geometry) (domain.ResourceSummary, error) {
	if watershed.Empty() {
		return domain.ResourceSummary{}, domain.ErrEmptyGeometry
	}

	body, err := c.post(ctx, ResourcesPath, watershed)
	if err != nil {
		return domain.ResourceSummary{}, err
	}

	values, err := decodeNumberMap(body)
	if err != nil {
		return domain.ResourceSummary{}, &UpstreamError{Endpoint: ResourcesPath, Err: err}
	}
	summary, err := domain.ResourceSummaryFromMap(values)
	if err != nil {
		return domain.ResourceSummary{}, &UpstreamError{Endpoint: ResourcesPath, Err: err}
	}
	return summary, nil
}

// LandCoverStatistics posts a watershed polygon and returns land-cover
// area per NLCD class from the fast zonal-statistics service.
func (c *Client) LandCoverStatistics(ctx context.Context, watershed domain.Geometry) (domain.LandCoverSummary, error) {
	if watershed.Empty() {
		return nil, domain.ErrEmptyGeometry
	}

	body, err := c.post(ctx, LandCoverPath, watershed)
	if err != nil {
		return nil, err
	}

	values, err := decodeNumberMap(body)
	if err != nil {
		return nil, &UpstreamError{Endpoint: LandCoverPath, Err: err}
	}
	summary := domain.LandCoverSummary(values)
	if err := summary.Validate(); err != nil {
		return nil, &UpstreamError{Endpoint: LandCoverPath, Err: err}
	}
	return summary, nil
}

// post serializes the payload, issues one POST and returns the raw
// 200-status body.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	start := time.Now()

	ctx, span := otel.Tracer("hydroapi").Start(ctx, "hydrology"+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("hydrology.endpoint", path)),
	)
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues(path).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, &UpstreamError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues(path).Inc()
		span.RecordError(err)
		return nil, &UpstreamError{Endpoint: path, Err: fmt.Errorf("read body: %w", err)}
	}

	metrics.UpstreamRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamErrors.WithLabelValues(path).Inc()
		span.SetStatus(codes.Error, "non-200 response")
		slog.Warn("hydrology call failed",
			"endpoint", path,
			"status", resp.StatusCode,
			"latency", time.Since(start).String(),
		)
		return nil, &UpstreamError{Endpoint: path, Status: resp.StatusCode, Err: fmt.Errorf("%s", snippet(body))}
	}

	slog.Debug("hydrology call",
		"endpoint", path,
		"status", resp.StatusCode,
		"bytes", len(body),
		"latency", time.Since(start).String(),
	)
	return body, nil
}

// decodeNumberMap strictly decodes a JSON object mapping string keys to
// numbers. Any other shape (arrays, nested objects, string or null
// values, trailing data) is rejected.
func decodeNumberMap(body []byte) (map[string]float64, error) {
	dec := json.NewDecoder(bytes.NewReader(body))

	var raw map[string]json.Number
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON object")
	}
	if raw == nil {
		return nil, errors.New("body is null")
	}

	values := make(map[string]float64, len(raw))
	for key, num := range raw {
		f, err := num.Float64()
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		values[key] = f
	}
	return values, nil
}

// snippet trims a response body for inclusion in an error message.
func snippet(body []byte) string {
	const max = 200
	s := string(bytes.TrimSpace(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
