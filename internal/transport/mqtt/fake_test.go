package mqtt

import (
	"context"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
)

// fakeToken is a paho.Token completed by the test.
type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	done := make(chan struct{})
	close(done)

	return &fakeToken{done: done, err: err}
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }

// published is one recorded publication.
type published struct {
	topic   string
	payload string
}

// fakeClient implements the parts of paho.Client used by Channel.
// Calling any other method panics through the nil embedded interface.
type fakeClient struct {
	paho.Client

	mu           sync.Mutex
	connected    bool
	connectErrs  []error
	connectCalls int
	subscribed   []string
	published    []published
	publishToken *fakeToken
	disconnected bool
	onConnect    func(paho.Client)
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connected
}

func (f *fakeClient) IsConnectionOpen() bool {
	return f.IsConnected()
}

func (f *fakeClient) Connect() paho.Token {
	f.mu.Lock()

	f.connectCalls++

	var err error
	if len(f.connectErrs) > 0 {
		err, f.connectErrs = f.connectErrs[0], f.connectErrs[1:]
	}

	if err == nil {
		f.connected = true
	}

	onConnect := f.onConnect
	f.mu.Unlock()

	if err == nil && onConnect != nil {
		onConnect(f)
	}

	return doneToken(err)
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connected = false
	f.disconnected = true
}

func (f *fakeClient) Publish(topic string, _ byte, _ bool, payload any) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	text, _ := payload.(string)
	f.published = append(f.published, published{topic: topic, payload: text})

	if f.publishToken != nil {
		return f.publishToken
	}

	return doneToken(nil)
}

func (f *fakeClient) Subscribe(topic string, _ byte, _ paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subscribed = append(f.subscribed, topic)

	return doneToken(nil)
}

func (f *fakeClient) dropConnection(refusals ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connected = false
	f.connectErrs = refusals
}

func (f *fakeClient) snapshot() (calls int, subscribed []string, pubs []published) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connectCalls, append([]string(nil), f.subscribed...), append([]published(nil), f.published...)
}

// recordingHandler stores dispatched commands.
// A non-nil gate holds every call until it is closed.
type recordingHandler struct {
	mu       sync.Mutex
	commands []alarm.Command
	panics   bool
	gate     chan struct{}
}

func (h *recordingHandler) HandleCommand(_ context.Context, cmd alarm.Command) {
	if h.panics {
		panic("boom")
	}

	if h.gate != nil {
		<-h.gate
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.commands = append(h.commands, cmd)
}

func (h *recordingHandler) recorded() []alarm.Command {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]alarm.Command(nil), h.commands...)
}

// fakeMessage carries only what onMessage reads.
type fakeMessage struct {
	paho.Message

	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string {
	return m.topic
}

func (m *fakeMessage) Payload() []byte {
	return m.payload
}

func newTestChannel(client *fakeClient) *Channel {
	c := &Channel{
		client:  client,
		prefix:  "sleeper/feeds/",
		timeout: 5 * time.Second,
		backoff: Backoff{Initial: time.Second, Max: 30 * time.Second, Factor: 2},
		ctx:     context.Background(),
	}

	client.onConnect = c.onConnect

	return c
}
