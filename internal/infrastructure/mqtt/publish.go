package mqtt

import "fmt"

// maxPayloadSize caps publishes at 1MB, in line with common broker
// limits. Timestamp events are a few hundred bytes; anything near the
// cap is a bug upstream.
const maxPayloadSize = 1 << 20

// Publish sends one message and waits for broker acknowledgment (per
// the requested QoS) up to the publish timeout.
//
// Parameters:
//   - topic: destination, e.g. Topics{}.ChannelTimestamp("sim0", 3)
//   - payload: message body, JSON by convention
//   - qos: 0 fire-and-forget, 1 at-least-once, 2 exactly-once
//   - retained: broker keeps the last message for new subscribers;
//     used for status topics, never for events
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes",
			ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishRetained publishes a retained state message at the configured
// default QoS. Used for the per-device health topics.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
