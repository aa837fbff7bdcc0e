package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	infinity "github.com/Code-Hex/go-infinity-channel"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/metrics"
)

const (
	// qos is at-least-once; every handler is idempotent against duplicates.
	qos = 1
	// disconnectQuiesce is how long paho may spend flushing work on Close, in milliseconds.
	disconnectQuiesce = 250
)

// inbound is one message waiting to be dispatched.
type inbound struct {
	topic   string
	payload []byte
}

// Handler consumes decoded inbound commands.
type Handler interface {
	HandleCommand(ctx context.Context, cmd alarm.Command)
}

// Channel is the remote pub/sub connection.
type Channel struct {
	// client is the underlying paho client.
	client paho.Client
	// prefix is prepended to feed names to form topics.
	prefix string
	// timeout bounds connect, subscribe and publish round trips.
	timeout time.Duration
	// backoff spaces reconnect attempts.
	backoff Backoff

	// ctx is the lifecycle context set by Run; callbacks log through it.
	ctx context.Context //nolint:containedctx // Callbacks from paho have no context of their own.
	// handler receives decoded commands.
	handler Handler
	// queue carries inbound messages from paho's router to the dispatcher.
	queue *infinity.Channel[inbound]

	// reconnecting is set while a reconnect goroutine is running.
	reconnecting atomic.Bool
	// mu guards closed, sends on queue and additions to wg.
	mu sync.Mutex
	// closed is set once Run starts shutting down.
	closed bool
	// wg tracks the dispatcher and reconnect goroutines.
	wg sync.WaitGroup
}

// NewChannel creates a channel for the broker settings; nothing connects until Run.
func NewChannel(settings *config.Broker, backoff Backoff) *Channel {
	c := &Channel{
		prefix:  settings.TopicPrefix,
		timeout: settings.Timeout,
		backoff: backoff,
		ctx:     context.Background(),
	}

	// Ordered delivery keeps commands in arrival order; onMessage only
	// enqueues, so the router never blocks on a handler.
	opts := paho.NewClientOptions().
		AddBroker(settings.URL).
		SetClientID(settings.ClientID).
		SetUsername(settings.Username).
		SetPassword(settings.Key).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetConnectTimeout(settings.Timeout).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(opts)

	return c
}

// Run connects, retrying with backoff, and keeps the channel alive until ctx
// is cancelled. Inbound commands are passed to handler one at a time, in
// the order they arrived.
func (c *Channel) Run(ctx context.Context, handler Handler) error {
	c.ctx = logger.WithName(ctx, "mqtt")
	c.handler = handler

	c.mu.Lock()
	c.queue = infinity.NewChannel[inbound]()
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.dispatchQueued(c.ctx)
	}()

	err := c.connectWithRetry(c.ctx)
	if err == nil {
		<-ctx.Done()
	}

	c.shutdown()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Channel) IsConnected() bool {
	return c.client.IsConnected()
}

// Publish sends payload to feed and waits for the broker to accept it.
func (c *Channel) Publish(ctx context.Context, feed alarm.Feed, payload string) error {
	if !c.client.IsConnected() {
		return c.publishFailed(feed, ErrNotConnected)
	}

	token := c.client.Publish(c.topic(feed), qos, false, payload)

	if err := c.wait(ctx, token); err != nil {
		return c.publishFailed(feed, err)
	}

	logger.DebugKV(ctx, "Published", "feed", feed, "payload", payload)

	return nil
}

// shutdown waits for the dispatcher and any reconnect goroutine to observe
// the cancelled context, then disconnects.
func (c *Channel) shutdown() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()

	if c.client.IsConnectionOpen() {
		c.client.Disconnect(disconnectQuiesce)
	}

	// Messages still queued are dropped.
	c.queue.Close()

	for range c.queue.Out() {
	}

	metrics.RemoteConnected.Set(0)
}

// dispatchQueued applies queued messages one at a time until ctx is done.
func (c *Channel) dispatchQueued(ctx context.Context) {
	out := c.queue.Out()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-out:
			if ctx.Err() != nil {
				return
			}

			c.Dispatch(msg.topic, msg.payload)
		}
	}
}

// Dispatch decodes one inbound message and hands it to the handler.
// Malformed, echoed or unknown messages are logged and dropped.
func (c *Channel) Dispatch(topic string, payload []byte) {
	ctx := c.ctx

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Message handler panicked", "topic", topic, "panic", r)
		}
	}()

	feed, ok := c.feed(topic)
	if !ok {
		metrics.MessagesTotal.WithLabelValues("", "unknown").Inc()
		logger.WarnKV(ctx, "Message on unexpected topic", "topic", topic)

		return
	}

	logger.DebugKV(ctx, "Feed received new value", "feed", feed, "payload", string(payload))

	cmd, err := alarm.Decode(feed, payload)

	switch {
	case err == nil:
		metrics.MessagesTotal.WithLabelValues(string(feed), "accepted").Inc()
	case errors.Is(err, alarm.ErrEcho):
		metrics.MessagesTotal.WithLabelValues(string(feed), "echo").Inc()
		return
	case errors.Is(err, alarm.ErrUnknownTopic):
		metrics.MessagesTotal.WithLabelValues(string(feed), "unknown").Inc()
		logger.WarnKV(ctx, "Message on unhandled feed", "feed", feed)

		return
	default:
		metrics.MessagesTotal.WithLabelValues(string(feed), "invalid").Inc()
		logger.WarnKV(ctx, "Malformed payload ignored", "feed", feed, "error", err)

		return
	}

	if c.handler != nil {
		c.handler.HandleCommand(ctx, cmd)
	}
}

// onConnect subscribes every inbound feed; paho calls it after each successful connect.
func (c *Channel) onConnect(client paho.Client) {
	metrics.RemoteConnected.Set(1)
	logger.Info(c.ctx, "Connected to broker")

	for _, feed := range alarm.InboundFeeds() {
		token := client.Subscribe(c.topic(feed), qos, c.onMessage)

		if err := c.wait(c.ctx, token); err != nil {
			logger.ErrorKV(c.ctx, "Subscribe failed", "error", &TransportError{Op: "subscribe", Feed: feed, Err: err})
		}
	}
}

// onConnectionLost starts a single background reconnect loop.
func (c *Channel) onConnectionLost(_ paho.Client, err error) {
	metrics.RemoteConnected.Set(0)
	logger.WarnKV(c.ctx, "Disconnected from broker, reconnecting", "error", err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.ctx.Err() != nil {
		return
	}

	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}

	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		defer c.reconnecting.Store(false)

		if err := c.connectWithRetry(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.ErrorKV(c.ctx, "Reconnect aborted", "error", err)
		}
	}()
}

// onMessage runs on paho's router goroutine and must not block; the queue
// is unbounded, so the send returns as soon as the buffer takes it.
func (c *Channel) onMessage(_ paho.Client, msg paho.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.queue == nil {
		return
	}

	c.queue.In() <- inbound{topic: msg.Topic(), payload: msg.Payload()}
}

// connectWithRetry keeps trying until connected or ctx is done.
func (c *Channel) connectWithRetry(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if c.client.IsConnected() {
			return nil
		}

		err := c.connect(ctx)
		if err == nil {
			return nil
		}

		wait := c.backoff.Next(attempt)

		metrics.ReconnectAttemptsTotal.Inc()
		logger.WarnKV(ctx, "Unable to connect to the broker, check connection", "error", err, "retry_in", wait.String())

		if err = sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (c *Channel) connect(ctx context.Context) error {
	if err := c.wait(ctx, c.client.Connect()); err != nil {
		return &TransportError{Op: "connect", Err: err}
	}

	return nil
}

// wait blocks until token completes, the timeout elapses or ctx is done.
func (c *Channel) wait(ctx context.Context, token paho.Token) error {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) publishFailed(feed alarm.Feed, err error) error {
	metrics.PublishFailuresTotal.WithLabelValues(string(feed)).Inc()

	return &TransportError{Op: "publish", Feed: feed, Err: err}
}

func (c *Channel) topic(feed alarm.Feed) string {
	return c.prefix + string(feed)
}

func (c *Channel) feed(topic string) (alarm.Feed, bool) {
	name, ok := strings.CutPrefix(topic, c.prefix)
	if !ok || name == "" {
		return "", false
	}

	return alarm.Feed(name), true
}
