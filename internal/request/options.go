package request

import "time"

// FailurePolicy decides what Fail does with the last good value.
type FailurePolicy int

const (
	// RetainData keeps the last good value as Failed.Previous so a consumer
	// can show stale data under an error banner.
	RetainData FailurePolicy = iota
	// ClearData drops the last good value on failure.
	ClearData
)

func (p FailurePolicy) String() string {
	if p == ClearData {
		return "clear"
	}
	return "retain"
}

type options struct {
	policy  FailurePolicy
	hooks   Hooks
	label   string
	timeout time.Duration
}

// Option configures a Container.
type Option func(*options)

// WithPolicy sets the failure policy. Default RetainData.
func WithPolicy(p FailurePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithHooks installs diagnostics hooks.
func WithHooks(h Hooks) Option {
	return func(o *options) {
		if h != nil {
			o.hooks = h
		}
	}
}

// WithLabel names the container in hooks and logs.
func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

// WithTimeout bounds requests launched through Run and RunSync. A request
// that has not settled within d fails with ErrTimeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}
