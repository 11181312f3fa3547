package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	incoming := uuid.NewString()

	tests := []struct {
		name     string
		header   string
		wantSame bool
	}{
		{name: "generated when absent", header: ""},
		{name: "kept when valid", header: incoming, wantSame: true},
		{name: "replaced when malformed", header: "abc\r\ninjected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromCtx string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, ok := GetRequestIDFromContext(r.Context())
				require.True(t, ok)
				fromCtx = id
			})

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header[RequestIDHeader] = []string{tt.header}
			}
			w := httptest.NewRecorder()
			RequestID(next).ServeHTTP(w, r)

			got := w.Header().Get(RequestIDHeader)
			assert.Equal(t, fromCtx, got)
			_, err := uuid.Parse(got)
			assert.NoError(t, err)
			if tt.wantSame {
				assert.Equal(t, incoming, got)
			} else {
				assert.NotEqual(t, tt.header, got)
			}
		})
	}
}
