package notify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarwatch/config"
)

func TestHealthchecksPings(t *testing.T) {
	var paths []string
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, string(body))
	}))
	defer server.Close()

	n := NewHealthchecksNotifier(config.HealthchecksConfig{
		Enabled: true,
		PingURL: server.URL + "/ping/abc",
	}, zerolog.Nop())

	require.NoError(t, n.PingSuccess("system ok"))
	require.NoError(t, n.PingFailure("east:7"))

	require.Len(t, paths, 2)
	assert.Equal(t, "/ping/abc", paths[0])
	assert.Equal(t, "/ping/abc/fail", paths[1])
	assert.Equal(t, "system ok", bodies[0])
	assert.Equal(t, "east:7", bodies[1])
}

func TestHealthchecksDisabledIsNoop(t *testing.T) {
	n := NewHealthchecksNotifier(config.HealthchecksConfig{Enabled: false}, zerolog.Nop())
	assert.NoError(t, n.PingSuccess("ignored"))
	assert.NoError(t, n.PingFailure("ignored"))
}

func TestHealthchecksBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	n := NewHealthchecksNotifier(config.HealthchecksConfig{
		Enabled: true,
		PingURL: server.URL,
	}, zerolog.Nop())

	err := n.PingSuccess("system ok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad status")
}
