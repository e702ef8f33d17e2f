package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"errors"
)

// doWithMethodFallback tries the primary HTTP method and, only on a
// transport-class failure (connection refused, proxy stripping the method,
// DNS), retries once with the alternate method. Application-level errors
// (any HTTP status) propagate untouched. This policy stays in the transport
// layer; business code never branches on HTTP methods.
func (g *HTTPGateway) doWithMethodFallback(ctx context.Context, primary, fallback, endpoint string, body []byte) (*http.Response, error) {
	resp, err := g.doJSON(ctx, primary, endpoint, body)
	if err == nil {
		return resp, nil
	}

	if !isTransportError(err) {
		return nil, err
	}

	g.log.Warn("GATEWAY", fmt.Sprintf("%s %s failed at transport level, retrying as %s: %v", primary, endpoint, fallback, err))

	resp, err = g.doJSON(ctx, fallback, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return resp, nil
}

func (g *HTTPGateway) doJSON(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.client.Do(req)
}

// isTransportError distinguishes failures of the transport itself from
// anything the server actually answered.
func isTransportError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
