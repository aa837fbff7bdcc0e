package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/oshokin/alarm-clock/internal/logger"
)

// maxQuoteBytes caps the quote response size.
const maxQuoteBytes = 64 << 10

var (
	// errBadHTTPStatus is returned for non-2xx responses.
	errBadHTTPStatus = errors.New("unexpected http status")
	// errEmptyQuote is returned when the API answers without a quote.
	errEmptyQuote = errors.New("empty quote")
)

// Quote is a quote of the day.
type Quote struct {
	// Text is the quote without markup.
	Text string
	// Author is who said it.
	Author string
}

// Message renders the quote as the SMS body.
func (q Quote) Message() string {
	return fmt.Sprintf("\n%s\n- %s", q.Text, q.Author)
}

// SMSSender delivers a text message.
type SMSSender interface {
	Send(ctx context.Context, body string) error
}

// QOD fetches a quote of the day and texts it.
type QOD struct {
	// url is the quote API endpoint.
	url string
	// timeout bounds the whole notification.
	timeout time.Duration
	// client performs the quote request.
	client *http.Client
	// sender delivers the message.
	sender SMSSender
}

// NewQOD creates a quote-of-day notifier.
func NewQOD(url string, timeout time.Duration, client *http.Client, sender SMSSender) *QOD {
	if client == nil {
		client = http.DefaultClient
	}

	return &QOD{
		url:     url,
		timeout: timeout,
		client:  client,
		sender:  sender,
	}
}

// Notify implements Notifier.
func (q *QOD) Notify(ctx context.Context) error {
	ctx = logger.WithName(ctx, "qod")

	if q.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	quote, err := q.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch quote: %w", err)
	}

	if err = q.sender.Send(ctx, quote.Message()); err != nil {
		return fmt.Errorf("send quote: %w", err)
	}

	logger.InfoKV(ctx, "Quote of the day sent", "author", quote.Author)

	return nil
}

// Fetch downloads and cleans the current quote.
func (q *QOD) Fetch(ctx context.Context) (Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("get %s: %w", q.url, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Quote{}, fmt.Errorf("%w: %s", errBadHTTPStatus, resp.Status)
	}

	var payload struct {
		Quote  string `json:"quote"`
		Author string `json:"author"`
	}

	if err = json.NewDecoder(io.LimitReader(resp.Body, maxQuoteBytes)).Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("decode quote: %w", err)
	}

	quote := Quote{
		Text:   StripTags(payload.Quote),
		Author: StripTags(payload.Author),
	}

	if quote.Text == "" {
		return Quote{}, errEmptyQuote
	}

	return quote, nil
}

// StripTags removes HTML markup and decodes entities.
func StripTags(s string) string {
	var (
		b         strings.Builder
		tokenizer = html.NewTokenizer(strings.NewReader(s))
	)

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(tokenizer.Text())
		default:
			// Markup is dropped.
		}
	}
}
