package mqtt

// Handler receives messages for a subscribed topic filter.
type Handler func(topic string, payload []byte)

// Client publishes and subscribes to MQTT topics.
type Client interface {
	// Publish sends payload to topic.
	Publish(topic string, qos byte, retained bool, payload []byte) error

	// Subscribe registers h for messages matching the topic filter.
	Subscribe(filter string, qos byte, h Handler) error

	// Unsubscribe removes the subscriptions for the given filters.
	Unsubscribe(filters ...string) error
}
