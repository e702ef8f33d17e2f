package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-reservations/internal/logger"
)

// methodDroppingTransport simulates a proxy that cannot carry certain HTTP
// methods: those requests die at the transport level, everything else
// passes through to the real server.
type methodDroppingTransport struct {
	drop map[string]bool
	base http.RoundTripper
}

func (t *methodDroppingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.drop[req.Method] {
		return nil, &url.Error{Op: req.Method, URL: req.URL.String(), Err: errors.New("connection reset by peer")}
	}
	return t.base.RoundTrip(req)
}

// newRecordingServer answers every request with the given status and
// records which methods actually reached it.
func newRecordingServer(t *testing.T, status int) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	seen := func() []string {
		mu.Lock()
		defer mu.Unlock()
		out := make([]string, len(methods))
		copy(out, methods)
		return out
	}
	return srv, seen
}

func TestUpdatePaymentMethodPatchFirst(t *testing.T) {
	srv, seen := newRecordingServer(t, http.StatusOK)
	gw := NewHTTPGateway(srv.Client(), srv.URL, logger.NewLogger())

	require.NoError(t, gw.UpdatePaymentMethod(context.Background(), "res_1", "qr"))
	assert.Equal(t, []string{http.MethodPatch}, seen())
}

func TestUpdatePaymentMethodFallsBackToPutOnTransportFailure(t *testing.T) {
	srv, seen := newRecordingServer(t, http.StatusOK)
	client := &http.Client{Transport: &methodDroppingTransport{
		drop: map[string]bool{http.MethodPatch: true},
		base: http.DefaultTransport,
	}}
	gw := NewHTTPGateway(client, srv.URL, logger.NewLogger())

	require.NoError(t, gw.UpdatePaymentMethod(context.Background(), "res_1", "qr"))
	// PATCH died in transit; only the PUT retry reached the server.
	assert.Equal(t, []string{http.MethodPut}, seen())
}

func TestUpdatePaymentMethodServerErrorDoesNotFallBack(t *testing.T) {
	srv, seen := newRecordingServer(t, http.StatusInternalServerError)
	gw := NewHTTPGateway(srv.Client(), srv.URL, logger.NewLogger())

	err := gw.UpdatePaymentMethod(context.Background(), "res_1", "qr")
	require.Error(t, err)
	// The server answered, so the error is application-level: no PUT retry.
	assert.Equal(t, []string{http.MethodPatch}, seen())
}

func TestUpdatePaymentMethodBothMethodsUnreachable(t *testing.T) {
	srv, seen := newRecordingServer(t, http.StatusOK)
	client := &http.Client{Transport: &methodDroppingTransport{
		drop: map[string]bool{http.MethodPatch: true, http.MethodPut: true},
		base: http.DefaultTransport,
	}}
	gw := NewHTTPGateway(client, srv.URL, logger.NewLogger())

	err := gw.UpdatePaymentMethod(context.Background(), "res_1", "qr")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Empty(t, seen())
}
