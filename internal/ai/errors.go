package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

var (
	// ErrUpstreamUnavailable means the completion service could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamError means the service answered with an error or a
	// malformed response.
	ErrUpstreamError = errors.New("upstream error")
)

func unavailable(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, provider, err)
}

func upstreamError(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstreamError, provider, err)
}

// statusError maps gateway-style statuses to unavailable, the rest to error.
func statusError(provider string, code int, msg string) error {
	if msg == "" {
		msg = fmt.Sprintf("status %d", code)
	}
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s: %s", ErrUpstreamUnavailable, provider, msg)
	}
	return fmt.Errorf("%w: %s: %s", ErrUpstreamError, provider, msg)
}

// classify sorts an opaque client error into the upstream taxonomy.
func classify(ctx context.Context, provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrUpstreamError) {
		return err
	}
	var urlErr *url.Error
	var netErr net.Error
	var opErr *net.OpError
	if errors.As(err, &urlErr) || errors.As(err, &opErr) || errors.As(err, &netErr) {
		return unavailable(ctx, provider, err)
	}
	return upstreamError(ctx, provider, err)
}
