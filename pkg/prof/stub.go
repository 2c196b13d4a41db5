//go:build !profile

package prof

import "errors"

// Enabled reports whether profiling was compiled in.
const Enabled = false

// ErrActive indicates a profiling session is already running. Stubs never
// return it.
var ErrActive = errors.New("profiling session already active")

// Session is a no-op when built without the "profile" tag.
type Session struct{}

// Start is a no-op when built without the "profile" tag.
func Start(Options) (*Session, error) {
	return &Session{}, nil
}

// Stop is a no-op when built without the "profile" tag.
func (*Session) Stop() error {
	return nil
}
