package session

import "fmt"

// TransientError marks a connect failure that should be retried (spec.md
// §4.2 "Closed" and "Read timeout" cases, and §7 TransportTransient).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("session: transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a connect failure that must not be retried (spec.md §4.2
// "Transport syscall failure" and "Other secure-handshake error", and §7
// TransportFatal).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("session: fatal: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// AuthDeniedError wraps an authentication failure: process-level fatal,
// never retried, because credentials are static (spec.md §7 AuthDenied).
type AuthDeniedError struct {
	Err error
}

func (e *AuthDeniedError) Error() string { return fmt.Sprintf("session: auth denied: %v", e.Err) }
func (e *AuthDeniedError) Unwrap() error { return e.Err }
