package webhook

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *fixture) {
	t.Helper()

	registry := prometheus.NewRegistry()
	f := newFixture()
	f.health = NewHealth(registry)
	f.handler.health = f.health

	server := httptest.NewServer(NewRouter(f.handler, "/webhook", registry))
	t.Cleanup(server.Close)
	return server, f
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}

func TestServerWebhook(t *testing.T) {
	server, f := newTestServer(t)

	body := saleBody()
	body.Set("Secret_Key", testSecret)
	res, err := http.Post(server.URL+"/webhook", "application/x-www-form-urlencoded", strings.NewReader(body.Encode()))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, MessageSuccess, readBody(t, res))
	assert.Equal(t, 1, f.store.Len())
}

func TestServerSecretInQueryString(t *testing.T) {
	server, f := newTestServer(t)

	target := server.URL + "/webhook?" + url.Values{"Secret_Key": {testSecret}}.Encode()
	res, err := http.Post(target, "application/x-www-form-urlencoded", strings.NewReader(saleBody().Encode()))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	readBody(t, res)
	assert.Equal(t, 1, f.store.Len())
}

func TestServerUnauthorized(t *testing.T) {
	server, f := newTestServer(t)

	res, err := http.Post(server.URL+"/webhook", "application/x-www-form-urlencoded", strings.NewReader(saleBody().Encode()))
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "Please authenticate", readBody(t, res))
	assert.Equal(t, 0, f.store.Len())
}

func TestServerMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)

	res, err := http.Get(server.URL + "/webhook")
	require.NoError(t, err)

	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	assert.Equal(t, http.MethodPost, res.Header.Get("Allow"))
	readBody(t, res)
}

func TestServerBodyTooLarge(t *testing.T) {
	server, f := newTestServer(t)

	body := strings.Repeat("a", maxBodyBytes+1)
	res, err := http.Post(server.URL+"/webhook", "application/x-www-form-urlencoded", strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
	readBody(t, res)
	assert.Equal(t, 0, f.store.Len())
}

func TestServerHealthAndMetrics(t *testing.T) {
	server, _ := newTestServer(t)

	res, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", readBody(t, res))

	// Produce one sample so the counter vector is exported
	res, err = http.Post(server.URL+"/webhook", "application/x-www-form-urlencoded", strings.NewReader(""))
	require.NoError(t, err)
	readBody(t, res)

	res, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, readBody(t, res), `webhook_received_total{outcome="unauthorized"} 1`)
}
