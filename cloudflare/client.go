package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dnsswitch/dnsswitch/failover"
	dnshttp "github.com/dnsswitch/dnsswitch/pkg/http"
	"github.com/dnsswitch/dnsswitch/pkg/version"
	"golang.org/x/time/rate"
)

const defaultEndpoint = "https://api.cloudflare.com/client/v4"

// ErrRecordNotFound means the zone has no record with the requested name.
var ErrRecordNotFound = errors.New("record not found")

var _ failover.RecordProvider = (*Client)(nil)

type ClientOpts struct {
	// Endpoint overrides the API base URL.
	Endpoint string

	ZoneID   string
	APIToken string
	Timeout  time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client talks to the Cloudflare v4 DNS records API for a single zone.
// Requests pass through a limiter held far under the API's ceiling of 1200
// requests per five minutes.
type Client struct {
	endpoint string
	zoneID   string
	token    string

	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(opts ClientOpts) *Client {
	endpoint := strings.TrimSuffix(opts.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = dnshttp.WithLogging(dnshttp.NewClient(dnshttp.ClientOpts{Timeout: opts.Timeout}))
	}

	return &Client{
		endpoint:   endpoint,
		zoneID:     opts.ZoneID,
		token:      opts.APIToken,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(4), 4),
	}
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type recordResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type listResponse struct {
	Success bool           `json:"success"`
	Errors  []apiError     `json:"errors"`
	Result  []recordResult `json:"result"`
}

type updateRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
	Comment string `json:"comment"`
}

type updateResponse struct {
	Success bool       `json:"success"`
	Errors  []apiError `json:"errors"`
}

// LookupRecordID finds the id of the zone record with the given name.
func (c *Client) LookupRecordID(ctx context.Context, name string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/zones/%s/dns_records?name=%s", c.endpoint, c.zoneID, url.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("read resp: %w", err)
		}
		return "", fmt.Errorf("list records: %s:%s", resp.Status, string(body))
	}

	var list listResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !list.Success {
		return "", fmt.Errorf("list records: %s", apiErrorString(list.Errors))
	}

	for _, rec := range list.Result {
		if strings.EqualFold(rec.Name, name) {
			return rec.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrRecordNotFound, name)
}

// UpdateRecord replaces the record at id with target. Records are always
// written unproxied so the published address stays the uplink's own.
func (c *Client) UpdateRecord(ctx context.Context, id string, target failover.RecordTarget) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	b, err := json.Marshal(updateRequest{
		Type:    target.Kind,
		Name:    target.Name,
		Content: target.Content,
		TTL:     target.TTL,
		Proxied: false,
		Comment: fmt.Sprintf("Managed by dnsswitch %s", version.Version),
	})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	u := fmt.Sprintf("%s/zones/%s/dns_records/%s", c.endpoint, c.zoneID, id)
	req, err := http.NewRequestWithContext(ctx, "PUT", u, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http put: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read resp: %w", err)
		}
		return fmt.Errorf("update record: %s:%s", resp.Status, string(body))
	}

	var up updateResponse
	if err := json.NewDecoder(resp.Body).Decode(&up); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !up.Success {
		return fmt.Errorf("update record: %s", apiErrorString(up.Errors))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", "dnsswitch")
}

func apiErrorString(errs []apiError) string {
	if len(errs) == 0 {
		return "unknown error"
	}
	return fmt.Sprintf("code %d: %s", errs[0].Code, errs[0].Message)
}
