package ip_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mangrovewatch/mangrove/internal/rest/middleware/ip"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		trusted    string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote address",
			remoteAddr: "198.51.100.7:5123",
			want:       "198.51.100.7",
		},
		{
			name:       "header ignored when untrusted",
			remoteAddr: "198.51.100.7:5123",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1"},
			want:       "198.51.100.7",
		},
		{
			name:       "closest forwarded address",
			trusted:    "X-Forwarded-For",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 203.0.113.2"},
			want:       "203.0.113.2",
		},
		{
			name:       "invalid header falls back",
			trusted:    "X-Real-IP",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string]string{"X-Real-IP": "garbage"},
			want:       "10.0.0.2",
		},
		{
			name:       "unparseable remote",
			remoteAddr: "pipe",
			want:       ip.UnknownIP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			m := ip.New(zap.NewNop(), tt.trusted)
			assert.Equal(t, tt.want, m.ClientIP(req))
		})
	}
}

func TestFromContextDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ip.UnknownIP, ip.FromContext(t.Context()))
	assert.Equal(t, "192.0.2.1", ip.FromContext(ip.WithIP(t.Context(), "192.0.2.1")))
}
