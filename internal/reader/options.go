package reader

import "go.uber.org/zap"

type options struct {
	region   string
	client   SecretsManagerAPI
	logger   *zap.Logger
	throttle *Throttle
}

// Option configures a reader. Options that do not apply to a reader are
// ignored by it.
type Option func(*options)

// WithRegion selects the AWS region used by the Secrets Manager client.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithClient injects a Secrets Manager client instead of building one from
// the default AWS configuration.
func WithClient(client SecretsManagerAPI) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithLogger sets the logger used to report read failures.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithThrottle paces the outbound request through t.
func WithThrottle(t *Throttle) Option {
	return func(o *options) {
		o.throttle = t
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
