package http

import (
	"bytes"
	"errors"
	stdhttp "net/http"
	"strings"
	"testing"

	"log/slog"

	"github.com/dnsswitch/dnsswitch/pkg/logger"
	"github.com/stretchr/testify/require"
)

// fakeRT is a fake RoundTripper for testing
type fakeRT struct {
	resp   *stdhttp.Response
	err    error
	called int
}

func (f *fakeRT) RoundTrip(req *stdhttp.Request) (*stdhttp.Response, error) {
	f.called++
	return f.resp, f.err
}

// withCapturedLogs replaces the default slog logger to capture output into a buffer.
func withCapturedLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()

	buf := &bytes.Buffer{}
	prev := logger.Logger()

	// A text handler makes substring assertions easier.
	h := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
	logger.SetLevel(level)

	t.Cleanup(func() {
		slog.SetDefault(prev)
		logger.SetLevel(slog.LevelInfo)
	})
	return buf
}

func TestLoggingRoundTripper_TransportError(t *testing.T) {
	buf := withCapturedLogs(t, slog.LevelDebug)

	// Bot token in the path to verify redaction
	req, err := stdhttp.NewRequest("POST", "https://api.telegram.org/bot12345:supersecret/sendMessage", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer SECRET")

	lrt := loggingRoundTripper{next: &fakeRT{err: errors.New("boom")}}
	resp, rerr := lrt.RoundTrip(req)

	require.Error(t, rerr)
	require.Nil(t, resp)

	out := buf.String()
	require.Contains(t, out, "HTTP transport error")
	require.Contains(t, out, "method=POST")
	require.Contains(t, out, "/botREDACTED/sendMessage")
	require.NotContains(t, out, "supersecret")
	// Sensitive headers must not be logged
	require.NotContains(t, out, "Authorization")
	require.NotContains(t, out, "Bearer SECRET")
}

func TestLoggingRoundTripper_Status5xx(t *testing.T) {
	buf := withCapturedLogs(t, slog.LevelDebug)

	req, err := stdhttp.NewRequest("PUT", "https://api.cloudflare.com/client/v4/zones/z1/dns_records/r1", strings.NewReader("{}"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer SECRET2")

	respHeaders := stdhttp.Header{}
	respHeaders.Set("cf-ray", "8f2b3c4d5e6f-AMS")
	rt := &fakeRT{resp: &stdhttp.Response{StatusCode: 500, Status: "500 Internal Server Error", Request: req, Body: stdhttp.NoBody, Header: respHeaders}}
	lrt := loggingRoundTripper{next: rt}
	resp, rerr := lrt.RoundTrip(req)

	require.NoError(t, rerr)
	require.NotNil(t, resp)

	out := buf.String()
	require.Contains(t, out, "HTTP status=500")
	require.Contains(t, out, "method=PUT")
	require.Contains(t, out, "ray=8f2b3c4d5e6f-AMS")
	// Sensitive headers must not be logged
	require.NotContains(t, out, "Authorization")
	require.NotContains(t, out, "Bearer SECRET2")
}

func TestLoggingRoundTripper_Status2xx_NoLog(t *testing.T) {
	buf := withCapturedLogs(t, slog.LevelDebug)

	req, err := stdhttp.NewRequest("PUT", "https://example.com/api", strings.NewReader("{}"))
	require.NoError(t, err)

	rt := &fakeRT{resp: &stdhttp.Response{StatusCode: 204, Status: "204 No Content", Request: req, Body: stdhttp.NoBody}}
	lrt := loggingRoundTripper{next: rt}
	resp, rerr := lrt.RoundTrip(req)

	require.NoError(t, rerr)
	require.NotNil(t, resp)

	// Expect no error logs for 2xx statuses
	require.Equal(t, "", buf.String())
}

func TestWithLogging_WrapsDefaultWhenNil(t *testing.T) {
	c := WithLogging(nil)
	require.NotNil(t, c)
	require.NotNil(t, c.Transport)

	lrt, ok := c.Transport.(loggingRoundTripper)
	require.True(t, ok, "transport should be loggingRoundTripper")
	require.Equal(t, stdhttp.DefaultTransport, lrt.next)
}

func TestWithLogging_PreservesCustomTransport(t *testing.T) {
	base := &fakeRT{}
	c := &stdhttp.Client{Transport: base}
	got := WithLogging(c)
	require.Same(t, c, got)

	lrt, ok := got.Transport.(loggingRoundTripper)
	require.True(t, ok)
	require.Same(t, base, lrt.next)
}

func TestRedactURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://api.telegram.org/bot111:abc/sendMessage", "https://api.telegram.org/botREDACTED/sendMessage"},
		{"https://api.telegram.org/bot111:abc", "https://api.telegram.org/botREDACTED"},
		{"https://api.cloudflare.com/client/v4/zones/z/dns_records", "https://api.cloudflare.com/client/v4/zones/z/dns_records"},
		{"https://example.com/robots.txt", "https://example.com/robots.txt"},
	}
	for _, tc := range cases {
		got := redactURL(tc.in)
		require.Equalf(t, tc.want, got, "input: %s", tc.in)
	}
}
