// Package mqtt provides MQTT client connectivity for HWTS Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - The hwts/ topic scheme (see Topics)
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// HWTS uses MQTT as both the outbound event bus and the inbound command
// path. The recorder publishes drained timestamps, drop-counter updates
// and channel lifecycle events; its command listener subscribes the
// hwts/cmd/+/+ wildcard so external tooling can enable or disable
// channels without touching the HTTP API.
//
//	HWTS Core → MQTT Broker → Consumers
//	Tooling   → hwts/cmd/…  → HWTS Core
//
// Retained messages carry the slow-moving state: hwts/system/status is
// published retained on connect (and is the LWT topic, so a crash flips
// it to offline), and hwts/health/{device} holds the last health
// document per device.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Listen for channel commands
//	err = client.Subscribe(mqtt.Topics{}.AllChannelCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command on %s: %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a timestamp
//	topic := mqtt.Topics{}.ChannelTimestamp("sim0", 3)
//	client.Publish(topic, []byte(`{"value":1234,"seq":7}`), 1, false)
package mqtt
