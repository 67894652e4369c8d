package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvDuration(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want time.Duration
	}{
		{"unset", "", 7 * time.Second},
		{"seconds", "30", 30 * time.Second},
		{"duration", "1m30s", 90 * time.Second},
		{"garbage", "soon", 7 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SITEFRONT_TEST_DURATION", tt.val)
			assert.Equal(t, tt.want, envDuration("SITEFRONT_TEST_DURATION", 7*time.Second))
		})
	}
}

func TestDefaultConfigHonoursEnv(t *testing.T) {
	t.Setenv("SITEFRONT_HTTP_TIMEOUT", "3")
	t.Setenv("SITEFRONT_HTTP_HEADER_TIMEOUT", "")

	cfg := DefaultConfig()
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 10*time.Second, cfg.ResponseHeaderTimeout)
}

func TestNewHTTPClient(t *testing.T) {
	cfg := WithTimeout(2 * time.Second)
	cfg.DisableCompression = true

	client := NewHTTPClient(&cfg)
	assert.Equal(t, 2*time.Second, client.Timeout)

	ua, ok := client.Transport.(*userAgentTransport)
	require.True(t, ok)
	transport, ok := ua.base.(*http.Transport)
	require.True(t, ok)
	assert.True(t, transport.DisableCompression)
	assert.Equal(t, 2*time.Second, transport.ResponseHeaderTimeout)
}

func TestWithTimeoutKeepsDefaultsForZero(t *testing.T) {
	t.Setenv("SITEFRONT_HTTP_TIMEOUT", "")
	assert.Equal(t, 10*time.Second, WithTimeout(0).Timeout)
}

func TestUserAgent(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	client := NewHTTPClient(nil)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom/1.0")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"sitefront/dev", "custom/1.0"}, got)
}
