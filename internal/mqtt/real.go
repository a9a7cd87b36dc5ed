package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/nightlight/internal/logic"
)

// bufferCapacity bounds the messages kept while the broker is unreachable.
const bufferCapacity = 100

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are buffered and replayed in order after reconnection.
type RealPublisher struct {
	client paho.Client
	topic  string

	mu          sync.Mutex
	buf         *ringBuffer
	connects    int
	onReconnect func()

	isOpen func() bool
}

// NewRealPublisher creates a publisher for the given broker. The connection
// is retried in the background; a broker that is down at startup is not an
// error.
func NewRealPublisher(broker, clientID string) *RealPublisher {
	p := &RealPublisher{
		topic: Topic,
		buf:   newRingBuffer(bufferCapacity),
	}
	p.isOpen = func() bool { return p.client.IsConnectionOpen() }

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.handleConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("mqtt: connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warn().Str("broker", broker).Msg("mqtt: broker not reachable yet, retrying in background")
	} else if err := token.Error(); err != nil {
		log.Warn().Err(err).Str("broker", broker).Msg("mqtt: connect failed, retrying in background")
	}

	return p
}

// OnReconnect registers fn to run after every connection but the first.
func (p *RealPublisher) OnReconnect(fn func()) {
	p.mu.Lock()
	p.onReconnect = fn
	p.mu.Unlock()
}

func (p *RealPublisher) handleConnect(c paho.Client) {
	pending, reconnect, fn := p.connected()

	log.Info().Int("buffered", len(pending)).Bool("reconnect", reconnect).Msg("mqtt: connected")

	// Publish from a new goroutine: paho must not block in its handlers.
	go func() {
		for _, msg := range pending {
			if err := p.send(msg); err != nil {
				log.Warn().Err(err).Str("topic", msg.topic).Msg("mqtt: replay failed")
			}
		}
		if reconnect && fn != nil {
			fn()
		}
	}()
}

// connected drains the buffer. paho reports the connection open before it
// calls the connect handler, so publishers holding p.mu after this send
// directly instead of buffering.
func (p *RealPublisher) connected() (pending []bufferedMsg, reconnect bool, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connects++
	return p.buf.drainAll(), p.connects > 1, p.onReconnect
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishRaw publishes payload, buffering it while disconnected.
func (p *RealPublisher) PublishRaw(topic string, qos byte, retained bool, payload []byte) error {
	msg := bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}
	if p.bufferIfOffline(msg) {
		return nil
	}
	return p.send(msg)
}

// bufferIfOffline checks the connection and buffers msg under the same lock
// handleConnect drains with, so a message is never pushed after the drain.
func (p *RealPublisher) bufferIfOffline(msg bufferedMsg) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isOpen() {
		return false
	}
	p.buf.push(msg)
	return true
}

// Publish sends a light event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.PublishRaw(p.topic, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.PublishRaw(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is currently open.
func (p *RealPublisher) IsConnected() bool {
	return p.isOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
