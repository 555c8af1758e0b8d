package utils

import (
	"context"
	"errors"
	"net"
)

// Kind classifies a failure so callers can decide whether to retry or surface it.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindTimeout
	KindTransport
	KindRenderer
	KindMalformed
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindRenderer:
		return "renderer"
	case KindMalformed:
		return "malformed_input"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error attaches a Kind and the failing operation to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds an *Error.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Deadlines and network timeouts are KindTimeout even when unwrapped.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != KindUnknown {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	if errors.As(err, &ne) {
		return KindTransport
	}
	return KindUnknown
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
