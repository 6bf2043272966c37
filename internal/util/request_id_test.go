package util

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func captureRequestID(t *testing.T, incoming string) (seen, echoed string) {
	t.Helper()
	handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromRequest(r)
		require.NotNil(t, LoggerFromContext(r.Context()))
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/commands", nil)
	if incoming != "" {
		req.Header.Set(RequestIDHeader, incoming)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return seen, rec.Header().Get(RequestIDHeader)
}

func TestWithRequestIDKeepsValidIncoming(t *testing.T) {
	seen, echoed := captureRequestID(t, "edge:7f3a-01.b_2")
	require.Equal(t, "edge:7f3a-01.b_2", seen)
	require.Equal(t, seen, echoed)
}

func TestWithRequestIDReplacesUnsafeIncoming(t *testing.T) {
	for _, incoming := range []string{
		"",
		strings.Repeat("a", maxRequestIDLen+1),
		"abc\nforged=1",
		"has space",
	} {
		seen, echoed := captureRequestID(t, incoming)
		require.NotEqual(t, incoming, seen)
		_, err := uuid.Parse(seen)
		require.NoError(t, err, "generated id should be a uuid")
		require.Equal(t, seen, echoed)
	}
}

func TestRequestIDFromRequestWithoutMiddleware(t *testing.T) {
	require.Empty(t, RequestIDFromRequest(nil))
	require.Empty(t, RequestIDFromRequest(httptest.NewRequest(http.MethodGet, "/", nil)))
}
