package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserAgent(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		header string
		want   string
	}{
		{"default", Options{}, "", DefaultUserAgent},
		{"configured", Options{UserAgent: "studio-test"}, "", "studio-test"},
		{"caller wins", Options{}, "custom/2", "custom/2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("User-Agent")
			}))
			defer srv.Close()

			req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("User-Agent", tt.header)
			}
			resp, err := New(tt.opts).Do(req)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeoutDefault(t *testing.T) {
	assert.Equal(t, 180*time.Second, New(Options{}).Timeout)
	assert.Equal(t, time.Second, New(Options{Timeout: time.Second}).Timeout)
}
