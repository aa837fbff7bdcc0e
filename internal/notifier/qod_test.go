package notifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	twilioclient "github.com/twilio/twilio-go/client"
)

var errSMS = errors.New("sms rejected")

// captureSender records the last message body.
type captureSender struct {
	body string
	err  error
}

func (c *captureSender) Send(_ context.Context, body string) error {
	c.body = body

	return c.err
}

// TestStripTags removes markup and decodes entities.
func TestStripTags(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  string
	}{
		{input: "<p>Simplicity is the soul of efficiency.</p>\n", want: "Simplicity is the soul of efficiency."},
		{input: "Good design is <em>obvious</em> &amp; honest", want: "Good design is obvious & honest"},
		{input: "plain", want: "plain"},
		{input: "<br/>&#8220;Less&#8221;<!-- x -->", want: "“Less”"},
		{input: "", want: ""},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, StripTags(tc.input), tc.input)
	}
}

// TestQuoteMessage formats the SMS body.
func TestQuoteMessage(t *testing.T) {
	t.Parallel()

	q := Quote{Text: "Make it simple.", Author: "Paul Rand"}
	require.Equal(t, "\nMake it simple.\n- Paul Rand", q.Message())
}

// TestQOD_Notify fetches, cleans and sends the quote.
func TestQOD_Notify(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"quote":"<p>Design is thinking made visual.</p>","author":"Saul Bass"}`)
	}))
	t.Cleanup(server.Close)

	sender := new(captureSender)
	q := NewQOD(server.URL, time.Second, server.Client(), sender)

	require.NoError(t, q.Notify(context.Background()))
	require.Equal(t, "\nDesign is thinking made visual.\n- Saul Bass", sender.body)
}

// TestQOD_Errors covers bad status, malformed JSON, empty quotes and send failures.
func TestQOD_Errors(t *testing.T) {
	t.Parallel()

	responses := map[string]func(w http.ResponseWriter){
		"status": func(w http.ResponseWriter) { w.WriteHeader(http.StatusServiceUnavailable) },
		"json":   func(w http.ResponseWriter) { _, _ = io.WriteString(w, "<html>") },
		"empty":  func(w http.ResponseWriter) { _, _ = io.WriteString(w, `{"quote":"<p></p>","author":"x"}`) },
	}

	for name, respond := range responses {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				respond(w)
			}))
			t.Cleanup(server.Close)

			sender := new(captureSender)
			q := NewQOD(server.URL, time.Second, server.Client(), sender)

			require.Error(t, q.Notify(context.Background()))
			require.Empty(t, sender.body)
		})
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"quote":"Q","author":"A"}`)
	}))
	t.Cleanup(server.Close)

	q := NewQOD(server.URL, time.Second, server.Client(), &captureSender{err: errSMS})
	require.ErrorIs(t, q.Notify(context.Background()), errSMS)
}

// TestTwilioSender posts the message form with basic auth through the SDK.
func TestTwilioSender(t *testing.T) {
	t.Parallel()

	var (
		gotPath string
		gotForm url.Values
		gotUser string
		gotPass string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()

		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"sid":"SM123","status":"queued"}`)
	}))
	t.Cleanup(server.Close)

	s, err := NewTwilioSender(server.URL+"/", "AC123", "token", "+15555555555", "+15558675309", server.Client())
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), "hello"))
	require.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	require.Equal(t, "AC123", gotUser)
	require.Equal(t, "token", gotPass)
	require.Equal(t, "+15558675309", gotForm.Get("To"))
	require.Equal(t, "+15555555555", gotForm.Get("From"))
	require.Equal(t, "hello", gotForm.Get("Body"))
}

// TestTwilioSender_Rejected surfaces API errors as the SDK's error type.
func TestTwilioSender_Rejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code":20003,"message":"Authenticate","status":401}`)
	}))
	t.Cleanup(server.Close)

	s, err := NewTwilioSender(server.URL, "AC123", "bad", "+1", "+2", server.Client())
	require.NoError(t, err)

	var restErr *twilioclient.TwilioRestError

	err = s.Send(context.Background(), "hello")
	require.ErrorAs(t, err, &restErr)
	require.Equal(t, 20003, restErr.Code)
	require.Equal(t, http.StatusUnauthorized, restErr.Status)
}

// TestTwilioSender_Cancelled stops waiting once the caller gives up.
func TestTwilioSender_Cancelled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}

		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	s, err := NewTwilioSender(server.URL, "AC123", "token", "+1", "+2", server.Client())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, s.Send(ctx, "hello"), context.DeadlineExceeded)
}

// TestNewTwilioSender_BadBaseURL rejects a root that does not parse.
func TestNewTwilioSender_BadBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewTwilioSender("http://[::1", "AC123", "token", "+1", "+2", nil)
	require.Error(t, err)
}

// TestNopAndFunc checks the trivial adapters.
func TestNopAndFunc(t *testing.T) {
	t.Parallel()

	require.NoError(t, Nop{}.Notify(context.Background()))

	called := 0
	f := Func(func(context.Context) error {
		called++
		return errSMS
	})

	require.ErrorIs(t, f.Notify(context.Background()), errSMS)
	require.Equal(t, 1, called)
}
