package eleven

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/api/v1/", "secret", time.Second, zap.NewNop())
}

func TestGetSite(t *testing.T) {

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/site", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Contains(t, r.Header.Get("User-Agent"), "eleven2mqtt/")
		_, _ = io.WriteString(w, `{"devices":[{"deviceId":"inv1","type":"hybridinverter","name":"H5"},{"deviceId":"m1","type":"meter"}]}`)
	})

	site, err := c.GetSite(context.Background())
	require.NoError(t, err)
	require.Len(t, site.Devices, 2)
	assert.Equal(t, "inv1", site.Devices[0].DeviceId)
	require.NotNil(t, site.Devices[0].Name)
	assert.Equal(t, "H5", *site.Devices[0].Name)
	assert.Nil(t, site.Devices[0].SerialNumber)
	assert.Equal(t, "meter", site.Devices[1].Type)
}

func TestGetDeviceState(t *testing.T) {

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/devices/inv1", r.URL.Path)
		_, _ = io.WriteString(w, `{"pv":{"power":1.5},"battery":{"stateOfCharge":64},"operatingMode":{"workMode":"idleBattery"},"deviceId":"inv1"}`)
	})

	state, err := c.GetDeviceState(context.Background(), "inv1")
	require.NoError(t, err)
	assert.Equal(t, 1.5, state["pv"]["power"])
	assert.Equal(t, 64.0, state["battery"]["stateOfCharge"])
	assert.Equal(t, "idleBattery", state["operatingMode"]["workMode"])
	assert.NotContains(t, state, "deviceId")
}

func TestGetErrorStatus(t *testing.T) {

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	_, err := c.GetDeviceState(context.Background(), "inv1")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestPostOperatingMode(t *testing.T) {

	var received map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/devices/inv1/operatingMode", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	})

	status, err := c.PostOperatingMode(context.Background(), "inv1", map[string]any{"workMode": "forceCharge", "targetSoc": 80})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, map[string]any{"workMode": "forceCharge", "targetSoc": 80.0}, received)
}

func TestPostTransportError(t *testing.T) {

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c := NewClient(url, "secret", time.Second, zap.NewNop())
	status, err := c.PostOperatingMode(context.Background(), "inv1", map[string]any{"workMode": "idleBattery"})
	assert.Error(t, err)
	assert.Equal(t, 0, status)
}

func TestRequestTimeout(t *testing.T) {

	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c := NewClient(ts.URL, "secret", 50*time.Millisecond, zap.NewNop())
	_, err := c.GetSite(context.Background())
	assert.Error(t, err)
}

func TestCheckToken(t *testing.T) {

	valid := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"devices":[]}`)
	})
	ok, err := valid.CheckToken(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)

	invalid := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	ok, err = invalid.CheckToken(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
}
