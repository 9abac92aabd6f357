package research

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies why a profile could not be produced.
type FailureKind string

const (
	// KindNotReachable: the company site could not be fetched by any provider.
	KindNotReachable FailureKind = "not_reachable"
	// KindParseFailed: pages were fetched but no structured profile could
	// be extracted from them.
	KindParseFailed FailureKind = "parse_failed"
	// KindTimeout: the stage deadline elapsed before a profile was ready.
	KindTimeout FailureKind = "timeout"
	// KindUnavailable: the extraction backend errored.
	KindUnavailable FailureKind = "unavailable"
)

// Error is the tagged failure returned at the research boundary so the
// orchestrator can map it onto its fatal/degrade policy.
type Error struct {
	Kind FailureKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("research %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// fail wraps err with a kind, upgrading to KindTimeout when the context
// deadline was the actual cause.
func fail(ctx context.Context, kind FailureKind, url string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, URL: url, Err: err}
}

// KindOf extracts the failure kind from an error chain, or "" when the
// error did not come from this package.
func KindOf(err error) FailureKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
