package cache

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the UI can react without inspecting transport errors.
type Kind uint8

const (
	// KindAuthRequired: no credential at all. Terminal, route to login.
	KindAuthRequired Kind = iota + 1
	// KindSessionExpired: the server rejected a credential that used to work. Terminal, re-authenticate.
	KindSessionExpired
	// KindNoNetworkNoCache: offline and nothing cached. Recovers when connectivity returns.
	KindNoNetworkNoCache
	// KindNoDataAvailable: every source came up empty.
	KindNoDataAvailable
	// KindFetchFailed: transient remote failure with nothing cached to fall back to. Retry.
	KindFetchFailed
	// KindStorageFailure: local persistence failed. Logged, never surfaced to the UI.
	KindStorageFailure
	// KindInvalidInput: the caller passed a malformed date, group or key. A programming error, not retried.
	KindInvalidInput
)

var (
	ErrAuthRequired    = errors.New("authentication required")
	ErrSessionExpired  = errors.New("session expired")
	ErrNoDataAvailable = errors.New("no data available")
	// ErrNoNetworkNoCache also matches ErrNoDataAvailable.
	ErrNoNetworkNoCache = fmt.Errorf("%w: offline and nothing cached", ErrNoDataAvailable)
	ErrFetchFailed      = errors.New("fetch failed")
	ErrStorageFailure   = errors.New("storage failure")
	ErrInvalidInput     = errors.New("invalid input")

	// ErrCredentialRejected is returned by remote sources when the server refused the
	// credential (HTTP 401/403). The sync client and the registrar turn it into KindSessionExpired.
	ErrCredentialRejected = errors.New("credential rejected by server")
)

func (k Kind) sentinel() error {
	switch k {
	case KindAuthRequired:
		return ErrAuthRequired
	case KindSessionExpired:
		return ErrSessionExpired
	case KindNoNetworkNoCache:
		return ErrNoNetworkNoCache
	case KindNoDataAvailable:
		return ErrNoDataAvailable
	case KindFetchFailed:
		return ErrFetchFailed
	case KindStorageFailure:
		return ErrStorageFailure
	case KindInvalidInput:
		return ErrInvalidInput
	}
	return nil
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is the typed failure returned by the store, the sync client and the registration guard.
// errors.Is matches both the Kind's sentinel and the wrapped cause.
type Error struct {
	Kind Kind
	Op   string // getDay, getWeek, write, ...
	Key  string // cache key or identity, may be empty
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewError builds an *Error.
func NewError(kind Kind, op, key string, err error) *Error {
	return &Error{Kind: kind, Op: op, Key: key, Err: err}
}

// KindOf returns the Kind carried by err, or 0 when err is not one of ours.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k := KindAuthRequired; k <= KindInvalidInput; k++ {
		if err != nil && err == k.sentinel() {
			return k
		}
	}
	return 0
}
