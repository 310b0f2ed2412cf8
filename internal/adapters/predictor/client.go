// Package predictor calls the external attrition classifier.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/pkg/metrics"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxBody  = 64 << 10
	contentTypeJSON = "application/json"
)

// Predictor returns the classifier's outcome for one record.
type Predictor interface {
	Predict(ctx context.Context, r model.EmployeeRecord) (model.Outcome, error)
}

// Client posts one record per request to a classifier endpoint.
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	maxBody int64
}

// New creates a client for the endpoint at url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:     url,
		http:    &http.Client{},
		timeout: defaultTimeout,
		maxBody: defaultMaxBody,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string { return c.url }

type response struct {
	Attrition *string `json:"Attrition"`
}

// Predict sends r and returns the Attrition field of the response.
// Every failure is a *PredictionRequestError; nothing is defaulted.
func (c *Client) Predict(ctx context.Context, r model.EmployeeRecord) (model.Outcome, error) {
	start := time.Now()
	out, err := c.predict(ctx, r)
	if err != nil {
		var pe *PredictionRequestError
		if errors.As(err, &pe) {
			metrics.RecordPredictionError(pe.Kind)
		}
		return "", err
	}
	metrics.RecordPrediction(out.String(), float64(time.Since(start).Milliseconds()))
	return out, nil
}

func (c *Client) predict(ctx context.Context, r model.EmployeeRecord) (model.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(r)
	if err != nil {
		return "", &PredictionRequestError{Kind: KindMalformed, Err: fmt.Errorf("encode record: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", &PredictionRequestError{Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &PredictionRequestError{Kind: transportKind(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return "", &PredictionRequestError{Kind: transportKind(ctx, err), Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &PredictionRequestError{
			Kind:   KindStatus,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status: %s", strings.TrimSpace(snippet(raw))),
		}
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &PredictionRequestError{Kind: KindMalformed, Status: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	if parsed.Attrition == nil {
		return "", &PredictionRequestError{Kind: KindMalformed, Status: resp.StatusCode, Err: fmt.Errorf("response has no %s field", model.LabelColumn)}
	}
	out, err := model.ParseOutcome(*parsed.Attrition)
	if err != nil {
		return "", &PredictionRequestError{Kind: KindMalformed, Status: resp.StatusCode, Err: err}
	}
	return out, nil
}

func transportKind(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindNetwork
	}
}

func snippet(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
