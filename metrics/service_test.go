package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/require"
)

func TestLivenessMark(t *testing.T) {
	mark := &LivenessMark{}
	require.True(t, mark.Last().IsZero())

	before := time.Now()
	mark.Stamp()
	last := mark.Last()
	require.False(t, last.IsZero())
	require.False(t, last.Before(before))
}

func TestHandleHealthz(t *testing.T) {
	mark := &LivenessMark{}
	s := NewService(ServiceOpts{StalenessWindow: time.Minute, Liveness: mark}).(*service)

	// Never stamped reads as dead.
	rec := httptest.NewRecorder()
	s.handleHealthz(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "BAD", rec.Body.String())

	mark.Stamp()
	rec = httptest.NewRecorder()
	s.handleHealthz(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestHandleHealthz_Stale(t *testing.T) {
	mark := &LivenessMark{}
	mark.Stamp()
	s := NewService(ServiceOpts{StalenessWindow: 10 * time.Millisecond, Liveness: mark}).(*service)

	time.Sleep(25 * time.Millisecond)

	rec := httptest.NewRecorder()
	s.handleHealthz(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "BAD", rec.Body.String())
}

func TestServiceRoutes(t *testing.T) {
	mark := &LivenessMark{}
	mark.Stamp()
	svc := NewService(ServiceOpts{
		ListenAddr:      "127.0.0.1:0",
		MaxConns:        4,
		StalenessWindow: time.Minute,
		Liveness:        mark,
	}).(*service)
	require.NoError(t, svc.Open(context.Background()))
	defer svc.Close()

	base := "http://" + svc.listener.Addr().String()

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "OK", string(body))

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parser expfmt.TextParser
	fams, err := parser.TextToMetricFamilies(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	_, ok := fams[Namespace+"_poller_ticks_total"]
	require.True(t, ok, "expected registered collectors in the exposition")

	resp, err = http.Get(base + "/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
