package http

import (
	stdhttp "net/http"
	"regexp"
	"strings"

	"github.com/dnsswitch/dnsswitch/pkg/logger"
)

// botTokenRe matches the bot token path segment of a Telegram API URL.
var botTokenRe = regexp.MustCompile(`/bot[^/]+`)

// loggingRoundTripper wraps another RoundTripper and logs only errors.
type loggingRoundTripper struct {
	next stdhttp.RoundTripper
}

func (l loggingRoundTripper) RoundTrip(req *stdhttp.Request) (*stdhttp.Response, error) {
	resp, err := l.next.RoundTrip(req)

	if err != nil {
		logger.Errorf("HTTP transport error method=%s url=%s: %v", req.Method, redactURL(req.URL.String()), err)
		return resp, err
	}

	if resp != nil && resp.StatusCode >= 400 {
		// cf-ray identifies the request in Cloudflare's support tooling.
		if ray := resp.Header.Get("cf-ray"); ray != "" {
			logger.Errorf("HTTP status=%d method=%s url=%s ray=%s", resp.StatusCode, req.Method, redactURL(req.URL.String()), ray)
		} else {
			logger.Errorf("HTTP status=%d method=%s url=%s", resp.StatusCode, req.Method, redactURL(req.URL.String()))
		}
	}
	return resp, nil
}

// WithLogging wraps the client's Transport to log only errors (transport failures and HTTP >= 400).
func WithLogging(c *stdhttp.Client) *stdhttp.Client {
	if c == nil {
		c = &stdhttp.Client{}
	}
	next := c.Transport
	if next == nil {
		next = stdhttp.DefaultTransport
	}
	c.Transport = loggingRoundTripper{next: next}
	return c
}

// redactURL strips the Telegram bot token path segment so credentials never
// reach the logs. The provider token travels in a header and needs no handling.
func redactURL(s string) string {
	if !strings.Contains(s, "/bot") {
		return s
	}
	return botTokenRe.ReplaceAllString(s, "/botREDACTED")
}
