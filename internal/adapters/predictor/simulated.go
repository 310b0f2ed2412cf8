package predictor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/attrition/internal/domain/model"
)

// Simulated classifier defaults.
const (
	defaultSimMinLatency = 20 * time.Millisecond
	defaultSimMaxLatency = 60 * time.Millisecond
	defaultSimSeed       = 42
	defaultSimThreshold  = 0.5
)

// SimulatedOption applies a configuration option to the Simulated predictor.
type SimulatedOption func(*Simulated)

// WithLatencyRange sets the simulated round trip range. Equal bounds give a
// fixed latency; zero disables the delay.
func WithLatencyRange(minLatency, maxLatency time.Duration) SimulatedOption {
	return func(s *Simulated) {
		if minLatency >= 0 && maxLatency >= minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// WithThreshold sets the risk score at or above which Yes is returned.
func WithThreshold(t float64) SimulatedOption {
	return func(s *Simulated) {
		if t > 0 && t <= 1 {
			s.threshold = t
		}
	}
}

// WithSeed makes the latency jitter reproducible.
func WithSeed(seed int64) SimulatedOption {
	return func(s *Simulated) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // latency jitter only
	}
}

// Simulated is an in-process stand-in for the classifier, used for local
// runs and demos when no endpoint is configured. It scores a record with a
// fixed weighted heuristic and sleeps to mimic network latency.
type Simulated struct {
	minLatency time.Duration
	maxLatency time.Duration
	threshold  float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated predictor.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		minLatency: defaultSimMinLatency,
		maxLatency: defaultSimMaxLatency,
		threshold:  defaultSimThreshold,
		rng:        rand.New(rand.NewSource(defaultSimSeed)), //nolint:gosec // latency jitter only
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict waits out the simulated latency and classifies r.
func (s *Simulated) Predict(ctx context.Context, r model.EmployeeRecord) (model.Outcome, error) {
	if d := s.latency(); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", &PredictionRequestError{Kind: transportKind(ctx, ctx.Err()), Err: fmt.Errorf("simulated request: %w", ctx.Err())}
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return "", &PredictionRequestError{Kind: transportKind(ctx, err), Err: err}
	}

	if RiskScore(r) >= s.threshold {
		return model.OutcomeYes, nil
	}
	return model.OutcomeNo, nil
}

func (s *Simulated) latency() time.Duration {
	if s.maxLatency == s.minLatency {
		return s.minLatency
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minLatency + time.Duration(s.rng.Int63n(int64(s.maxLatency-s.minLatency)))
}

// RiskScore maps a record onto [0,1]; higher means more likely to leave.
// Each term is normalised by the feature's documented range.
func RiskScore(r model.EmployeeRecord) float64 {
	low := func(name string, v float64) float64 { return 1 - norm(name, v) }

	score := 0.20*low(model.FeatureJobSatisfaction, r.JobSatisfaction) +
		0.15*low(model.FeatureEnvironmentSatisfaction, r.EnvironmentSatisfaction) +
		0.15*low(model.FeatureWorkLifeBalance, r.WorkLifeBalance) +
		0.10*low(model.FeatureJobInvolvement, r.JobInvolvement) +
		0.15*low(model.FeatureMonthlyIncome, r.MonthlyIncome) +
		0.10*norm(model.FeatureDistanceFromHome, r.DistanceFromHome) +
		0.10*norm(model.FeatureNumCompaniesWorked, r.NumCompaniesWorked) +
		0.05*low(model.FeatureYearsAtCompany, r.YearsAtCompany)
	return clamp01(score)
}

func norm(name string, v float64) float64 {
	rng := model.Ranges[name]
	if rng.Max <= rng.Min {
		return 0
	}
	return clamp01((v - rng.Min) / (rng.Max - rng.Min))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
