package mqtt

import "context"

// Client is the broker connection the status bridge publishes daemon state
// through and receives remote brightness commands on. The paho-backed
// implementation lives in this package; bridge tests substitute fakes.
type Client interface {
	// Connect establishes a connection to the MQTT broker
	Connect(ctx context.Context) error

	// Disconnect closes the connection to the MQTT broker
	Disconnect()

	// Subscribe registers a handler for a command topic with the given QoS
	Subscribe(topic string, qos byte, handler MessageHandler) error

	// Publish sends a payload to a topic; state topics are retained so a
	// dashboard sees the last known brightness immediately
	Publish(topic string, qos byte, retained bool, payload []byte) error

	// IsConnected returns whether the client is currently connected
	IsConnected() bool
}

// MessageHandler is a callback for incoming command messages
type MessageHandler func(Message)

// Message is one received command message
type Message interface {
	// Topic returns the topic the message was published to
	Topic() string

	// Payload returns the message payload
	Payload() []byte

	// Ack acknowledges the message (for QoS > 0)
	Ack()
}
