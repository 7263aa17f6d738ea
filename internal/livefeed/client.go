// Package livefeed applies live node status published over MQTT by the
// execution engine to open canvases.
package livefeed

import (
	"context"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rendis/flowcanvas/pkg/schema"
)

const (
	connectTimeout   = 10 * time.Second
	subscribeTimeout = 10 * time.Second
)

// Subscriber is the part of an MQTT client the feed needs.
type Subscriber interface {
	Subscribe(topic string, handler paho.MessageHandler) error
}

// Client wraps a paho client.
type Client struct {
	client paho.Client
	broker string
	mu     sync.Mutex
}

// NewClient creates a client for broker without connecting.
func NewClient(broker, clientID string) *Client {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	return &Client{client: paho.NewClient(opts), broker: broker}
}

// Broker returns the broker URL.
func (c *Client) Broker() string { return c.broker }

// Connect connects to the broker, giving up when ctx ends or after a timeout.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wait(ctx, c.client.Connect(), connectTimeout, "connect to "+c.broker)
}

// Subscribe subscribes handler to topic at QoS 1.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wait(context.Background(), c.client.Subscribe(topic, 1, handler), subscribeTimeout, "subscribe "+topic)
}

// Disconnect disconnects, waiting up to one second for in-flight work.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client.Disconnect(1000)
}

// IsConnected reports whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

func wait(ctx context.Context, tok paho.Token, timeout time.Duration, what string) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
	case <-timer.C:
		return schema.NewErrorf(schema.ErrCodeProvider, "mqtt %s: timeout", what)
	case <-ctx.Done():
		return schema.NewErrorf(schema.ErrCodeProvider, "mqtt %s", what).WithCause(ctx.Err())
	}
	if err := tok.Error(); err != nil {
		return schema.NewErrorf(schema.ErrCodeProvider, "mqtt %s", what).WithCause(err)
	}
	return nil
}

var _ Subscriber = (*Client)(nil)
