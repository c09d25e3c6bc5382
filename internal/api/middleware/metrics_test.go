package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/health/live", want: "/health/live"},
		{path: "/health/ready", want: "/health/ready"},
		{path: "/metrics", want: "/metrics"},
		{path: "/api/v1/media", want: "/api/v1/media"},
		{path: "/api/v1/media/stats", want: "/api/v1/media/stats"},
		{path: "/api/v1/resource", want: "/api/v1/resource"},
		{path: "/api/v1/media/100/5", want: "/api/v1/media/{chat_id}/{message_id}"},
		{path: "/api/v1/media/-1001234/42", want: "/api/v1/media/{chat_id}/{message_id}"},
		{path: "/unknown", want: "/unknown"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q): хотели %q, получили %q", tt.path, tt.want, got)
		}
	}
}

func TestMetricsMiddlewarePassthrough(t *testing.T) {
	handler := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/100/5", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("ожидался статус 201, получен %d", rec.Code)
	}
}
