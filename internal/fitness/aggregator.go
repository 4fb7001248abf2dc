package fitness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/observability"
)

const (
	defaultBaseURL = "https://www.googleapis.com/fitness/v1"
	aggregatePath  = "/users/me/dataset:aggregate"

	dataTypeStepCountDelta = "com.google.step_count.delta"

	// Derived sources maintained by the provider. Different devices report
	// different totals for the same day, so each source is a separate query.
	SourceEstimatedSteps  = "derived:com.google.step_count.delta:com.google.android.gms:estimated_steps"
	SourceMergeStepDeltas = "derived:com.google.step_count.delta:com.google.android.gms:merge_step_deltas"
)

// ErrorKind classifies an aggregation failure by the underlying HTTP status.
type ErrorKind string

const (
	ErrUnauthorized ErrorKind = "unauthorized"
	ErrForbidden    ErrorKind = "forbidden"
	ErrUnknown      ErrorKind = "unknown"
)

// AggregationError is returned only when every candidate source failed.
type AggregationError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *AggregationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("step aggregation failed (%s, status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("step aggregation failed (%s): %v", e.Kind, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// Client queries the fitness aggregate endpoint across an ordered list of
// candidate data sources and reduces the results to a single best count.
type Client struct {
	httpClient *http.Client
	baseURL    string
	sources    []string
}

type Option func(*Client)

// WithBaseURL points the client at an alternative API host. Used in tests.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithSources overrides the ordered candidate source list. The empty string
// means the merged/all-sources query (no explicit dataSourceId).
func WithSources(sources []string) Option { return func(c *Client) { c.sources = sources } }

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		// Merged delta goes first since it is least likely to under-count.
		sources: []string{"", SourceEstimatedSteps, SourceMergeStepDeltas},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type aggregateRequest struct {
	AggregateBy     []aggregateBy `json:"aggregateBy"`
	BucketByTime    bucketByTime  `json:"bucketByTime"`
	StartTimeMillis int64         `json:"startTimeMillis"`
	EndTimeMillis   int64         `json:"endTimeMillis"`
}

type aggregateBy struct {
	DataTypeName string `json:"dataTypeName"`
	DataSourceID string `json:"dataSourceId,omitempty"`
}

type bucketByTime struct {
	DurationMillis int64 `json:"durationMillis"`
}

type aggregateResponse struct {
	Bucket []struct {
		Dataset []struct {
			Point []struct {
				Value []struct {
					IntVal int64 `json:"intVal"`
				} `json:"value"`
			} `json:"point"`
		} `json:"dataset"`
	} `json:"bucket"`
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("aggregate status %d: %s", e.status, e.body)
}

// AggregateSteps returns the best step count for [start, end). Sources are
// tried in priority order until one yields a non-zero total; the result is
// the maximum candidate seen. A zero from every source is a valid "no
// activity yet" outcome. Individual source failures are excluded; the call
// fails only when no source succeeded.
func (c *Client) AggregateSteps(ctx context.Context, accessToken string, start, end time.Time) (int64, error) {
	var (
		best      int64
		succeeded bool
		lastErr   error
	)
	for _, source := range c.sources {
		queryStart := time.Now()
		total, err := c.querySource(ctx, accessToken, source, start, end)
		observability.RecordFitnessSourceQuery(ctx, sourceLabel(source), queryOutcome(err), time.Since(queryStart))
		if err != nil {
			lastErr = err
			continue
		}
		succeeded = true
		if total > best {
			best = total
		}
		if total > 0 {
			break
		}
	}
	if !succeeded {
		return 0, classify(lastErr)
	}
	return best, nil
}

func (c *Client) querySource(ctx context.Context, accessToken, source string, start, end time.Time) (int64, error) {
	startMillis := start.UnixMilli()
	endMillis := end.UnixMilli()
	reqBody := aggregateRequest{
		AggregateBy:     []aggregateBy{{DataTypeName: dataTypeStepCountDelta, DataSourceID: source}},
		BucketByTime:    bucketByTime{DurationMillis: endMillis - startMillis},
		StartTimeMillis: startMillis,
		EndTimeMillis:   endMillis,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+aggregatePath, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, &statusError{status: resp.StatusCode, body: string(bytes.TrimSpace(body))}
	}

	var out aggregateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	var total int64
	for _, bucket := range out.Bucket {
		for _, ds := range bucket.Dataset {
			for _, p := range ds.Point {
				for _, v := range p.Value {
					total += v.IntVal
				}
			}
		}
	}
	return total, nil
}

func classify(err error) *AggregationError {
	if err == nil {
		err = errors.New("no data sources configured")
	}
	var se *statusError
	if errors.As(err, &se) {
		switch se.status {
		case http.StatusUnauthorized:
			return &AggregationError{Kind: ErrUnauthorized, Status: se.status, Err: err}
		case http.StatusForbidden:
			return &AggregationError{Kind: ErrForbidden, Status: se.status, Err: err}
		default:
			return &AggregationError{Kind: ErrUnknown, Status: se.status, Err: err}
		}
	}
	return &AggregationError{Kind: ErrUnknown, Err: err}
}

func sourceLabel(source string) string {
	switch source {
	case "":
		return "merged"
	case SourceEstimatedSteps:
		return "estimated_steps"
	case SourceMergeStepDeltas:
		return "merge_step_deltas"
	default:
		return "custom"
	}
}

func queryOutcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
