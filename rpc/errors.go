package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/samber/lo"
)

// Error wraps a chain RPC failure with its retry classification. Transient
// errors (rate limits, flaky nodes) are worth a backed-off retry; everything
// else propagates immediately.
type Error struct {
	Op        string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("rpc %s (%s): %v", e.Op, kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Rate-limit and node-flap signatures seen in public provider responses.
var transientSignatures = []string{
	"429",
	"too many requests",
	"rate limit",
	"limit exceeded",
	"exceeded the quota",
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"temporarily unavailable",
	"service unavailable",
	"503",
	"502",
}

// Classify wraps err into an *Error for op. Nil stays nil; an already
// classified error keeps its classification.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return err
	}

	return &Error{Op: op, Transient: isTransient(err), Err: err}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return lo.SomeBy(transientSignatures, func(sig string) bool {
		return strings.Contains(msg, sig)
	})
}

// IsTransient reports whether err was classified as worth retrying.
func IsTransient(err error) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Transient
}
