package cron

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireBearer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{name: "matching secret", secret: "s3cret", header: "Bearer s3cret", want: http.StatusOK},
		{name: "wrong secret", secret: "s3cret", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "missing header", secret: "s3cret", want: http.StatusUnauthorized},
		{name: "unconfigured secret", secret: "", header: "Bearer ", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cron/daily", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			RequireBearer(tt.secret, logger)(ok).ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}
