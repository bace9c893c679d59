package nifi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/openfroyo/nifictl/pkg/engine"
)

// statusError classifies a non-2xx reply. The engine replies with a plain
// text message body, which is kept as the error detail.
func statusError(op string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	cause := fmt.Errorf("%d %s: %s", status, http.StatusText(status), msg)

	var e *engine.EngineError
	switch {
	case status == http.StatusConflict:
		e = engine.NewConflictError("revision or state conflict", cause).WithCode(engine.ErrCodeConflict)
	case status == http.StatusNotFound:
		e = engine.NewPermanentError("object not found", cause).WithCode(engine.ErrCodeNotFound)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = engine.NewPermanentError("access denied", cause).WithCode(engine.ErrCodePermissionDenied)
	case status == http.StatusTooManyRequests:
		e = engine.NewThrottledError("rate limited", cause).WithCode(engine.ErrCodeRateLimited)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e = engine.NewTransientError("request timed out", cause).WithCode(engine.ErrCodeTimeout)
	case status >= 500:
		e = engine.NewTransientError("server error", cause).WithCode(engine.ErrCodeInternal)
	default:
		e = engine.NewPermanentError("request rejected", cause).WithCode(engine.ErrCodeValidation)
	}

	return e.WithOperation(op).WithDetail("status", status)
}

// transportError classifies a request that got no reply.
func transportError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return engine.NewTransientError("request timed out", err).
			WithCode(engine.ErrCodeTimeout).
			WithOperation(op)
	}
	return engine.NewTransientError("request failed", err).WithOperation(op)
}
