package rpc

import "time"

const (
	// DefaultTimeout bounds ordinary capability requests.
	DefaultTimeout = 5 * time.Second
	// InteractiveTimeout bounds requests that wait on the user, such as OAuth authorization.
	InteractiveTimeout = 5 * time.Minute
	// SelectedTextTimeout bounds the selected-text query.
	SelectedTextTimeout = time.Second
)

// Policy groups the timeout classes used by capability clients.
type Policy struct {
	Default      time.Duration
	Interactive  time.Duration
	SelectedText time.Duration
}

// DefaultPolicy returns the built-in timeout classes.
func DefaultPolicy() Policy {
	return Policy{
		Default:      DefaultTimeout,
		Interactive:  InteractiveTimeout,
		SelectedText: SelectedTextTimeout,
	}
}

// Normalize fills zero fields with their defaults.
func (p Policy) Normalize() Policy {
	d := DefaultPolicy()
	if p.Default <= 0 {
		p.Default = d.Default
	}
	if p.Interactive <= 0 {
		p.Interactive = d.Interactive
	}
	if p.SelectedText <= 0 {
		p.SelectedText = d.SelectedText
	}
	return p
}
