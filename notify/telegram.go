package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dnshttp "github.com/dnsswitch/dnsswitch/pkg/http"
)

const defaultTelegramEndpoint = "https://api.telegram.org"

// markdownV2Specials are the characters MarkdownV2 requires escaped in
// regular text.
const markdownV2Specials = "_*[]()~`>#+-=|{}.!"

// EscapeMarkdownV2 escapes interpolated values for use in rich messages.
func EscapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownV2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

type TelegramOpts struct {
	// Endpoint overrides the Telegram API base URL.
	Endpoint string

	APIToken string
	ChatID   int64
	Timeout  time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Telegram sends messages to a single chat through the Bot API.
type Telegram struct {
	endpoint string
	token    string
	chatID   int64

	httpClient *http.Client
}

func NewTelegram(opts TelegramOpts) *Telegram {
	endpoint := strings.TrimSuffix(opts.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultTelegramEndpoint
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = dnshttp.WithLogging(dnshttp.NewClient(dnshttp.ClientOpts{Timeout: opts.Timeout}))
	}

	return &Telegram{
		endpoint:   endpoint,
		token:      opts.APIToken,
		chatID:     opts.ChatID,
		httpClient: httpClient,
	}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// Send posts one message to the chat. Rich messages are parsed as
// MarkdownV2; callers escape interpolated values with EscapeMarkdownV2.
func (t *Telegram) Send(ctx context.Context, text string, rich bool) error {
	msg := sendMessageRequest{ChatID: t.chatID, Text: text}
	if rich {
		msg.ParseMode = "MarkdownV2"
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.endpoint, t.token)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "dnsswitch")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
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
		return fmt.Errorf("send failed: %s:%s", resp.Status, string(body))
	}
	return nil
}
