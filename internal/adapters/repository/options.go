package repository

const (
	defaultMaxRuns  = 1000
	defaultMaxLimit = 100
)

type options struct {
	maxRuns  int
	maxLimit int
}

func buildOptions(opts []Option) options {
	o := options{maxRuns: defaultMaxRuns, maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option applies a configuration option to a Store.
type Option func(*options)

// WithMaxRuns bounds how many runs the in-memory store retains.
func WithMaxRuns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRuns = n
		}
	}
}

// WithMaxLimit caps the page size List returns.
func WithMaxLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}
