package vtypes

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"
)

// DefaultRetryAfter is used for rate-limited failures when the provider
// does not supply its own hint.
const DefaultRetryAfter = 5 * time.Second

// Classify maps any failure into exactly one *Error. The mapping is total:
// unknown errors land in the network bucket, which is the safe recoverable
// default for a remote provider.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	// Already classified errors pass through unchanged.
	var ve *Error
	if errors.As(err, &ve) {
		return ve
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, "operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		e := NewError(KindNetwork, "operation cancelled", err)
		e.Recoverable = false
		return e
	}

	var se *StatusError
	if errors.As(err, &se) {
		return classifyStatus(se)
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return NewError(KindTimeout, "network timeout", err)
	}

	var ue *url.Error
	if errors.As(err, &ue) {
		return NewError(KindNetwork, "request failed", err)
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return NewError(KindNetwork, "connection failed", err)
	}

	return NewError(KindNetwork, err.Error(), err)
}

func classifyStatus(se *StatusError) *Error {
	switch {
	case se.Code == 401 || se.Code == 403:
		return NewError(KindAuthentication, se.Message, se)
	case se.Code == 429:
		e := NewError(KindRateLimited, se.Message, se)
		e.RetryAfter = se.RetryAfter
		if e.RetryAfter <= 0 {
			e.RetryAfter = DefaultRetryAfter
		}
		return e
	case se.Code == 400 || se.Code == 413 || se.Code == 422:
		return NewError(KindInvalidInput, se.Message, se)
	case se.Code >= 500:
		return NewError(KindProvider, se.Message, se)
	case se.Code == 408:
		return NewError(KindTimeout, se.Message, se)
	default:
		// Remaining 4xx responses are requests the provider will never
		// accept, so retrying is pointless.
		return NewError(KindInvalidInput, se.Message, se)
	}
}
