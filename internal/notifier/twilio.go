package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/oshokin/alarm-clock/internal/logger"
)

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	// baseURL replaces the SDK's API root when set.
	baseURL *url.URL
	// accountSID identifies the account and authenticates as the username.
	accountSID string
	// authToken authenticates as the password.
	authToken string
	// from is the sending number.
	from string
	// to is the receiving number.
	to string
	// client performs the requests.
	client *http.Client
}

// NewTwilioSender creates a sender for the given account and numbers.
// An empty baseURL keeps the SDK's own API root.
func NewTwilioSender(baseURL, accountSID, authToken, from, to string, client *http.Client) (*TwilioSender, error) {
	if client == nil {
		client = http.DefaultClient
	}

	s := &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		to:         to,
		client:     client,
	}

	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/"))
		if err != nil {
			return nil, fmt.Errorf("parse twilio base url: %w", err)
		}

		s.baseURL = u
	}

	return s, nil
}

// Send implements SMSSender.
func (s *TwilioSender) Send(ctx context.Context, body string) error {
	params := new(openapi.CreateMessageParams)
	params.SetTo(s.to)
	params.SetFrom(s.from)
	params.SetBody(body)

	msg, err := s.restClient(ctx).Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	if msg != nil && msg.Sid != nil {
		logger.DebugKV(ctx, "SMS accepted", "sid", *msg.Sid)
	}

	return nil
}

// restClient builds an SDK client whose requests carry ctx.
func (s *TwilioSender) restClient(ctx context.Context) *twilio.RestClient {
	httpClient := *s.client
	httpClient.Transport = &requestTransport{
		ctx:     ctx,
		baseURL: s.baseURL,
		next:    s.client.Transport,
	}

	base := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(s.accountSID, s.authToken),
		HTTPClient:  &httpClient,
	}
	base.SetAccountSid(s.accountSID)

	return twilio.NewRestClientWithParams(twilio.ClientParams{Client: base})
}

// requestTransport binds SDK requests to a context and optionally
// redirects them to another API root.
type requestTransport struct {
	ctx     context.Context //nolint:containedctx // The SDK has no context parameter.
	baseURL *url.URL
	next    http.RoundTripper
}

func (t *requestTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)

	if t.baseURL != nil {
		req.URL.Scheme = t.baseURL.Scheme
		req.URL.Host = t.baseURL.Host
		req.URL.Path = t.baseURL.Path + req.URL.Path
		req.URL.RawPath = ""
		req.Host = ""
	}

	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}

	return next.RoundTrip(req)
}
