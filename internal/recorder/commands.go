package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Command actions accepted on the hwts/cmd/{device}/{line} topics.
const (
	CommandEnable  = "enable"
	CommandDisable = "disable"
)

// Command is the payload external tooling publishes to a channel's
// command topic.
type Command struct {
	Action string `json:"action"`
}

// listenCommands subscribes the command wildcard so broker clients can
// enable and disable monitored channels. Best effort: the recorder is
// fully functional without the broker.
func (r *Recorder) listenCommands() {
	if r.deps.MQTT == nil {
		return
	}
	topic := r.topics.AllChannelCommands()
	if err := r.deps.MQTT.Subscribe(topic, 1, r.handleCommand); err != nil {
		r.deps.Logger.Warn("subscribing to command topic", "topic", topic, "error", err)
		return
	}
	r.deps.Logger.Info("command listener started", "topic", topic)
}

// stopCommands drops the command subscription.
func (r *Recorder) stopCommands() {
	if r.deps.MQTT == nil {
		return
	}
	if err := r.deps.MQTT.Unsubscribe(r.topics.AllChannelCommands()); err != nil {
		r.deps.Logger.Warn("unsubscribing from command topic", "error", err)
	}
}

// handleCommand applies one enable/disable command. The topic addresses
// the channel: hwts/cmd/{device}/{line}.
func (r *Recorder) handleCommand(topic string, payload []byte) error {
	device, line, err := parseCommandTopic(topic)
	if err != nil {
		return err
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("recorder: parsing command payload on %s: %w", topic, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var target *monitor
	for _, m := range r.monitors {
		if m.device == device && m.line == line && m.ch != nil {
			target = m
			break
		}
	}
	if target == nil {
		return fmt.Errorf("recorder: command for unmonitored channel %s line %d", device, line)
	}

	switch cmd.Action {
	case CommandEnable:
		if err := target.ch.Enable(); err != nil {
			return fmt.Errorf("recorder: enabling %s line %d: %w", device, line, err)
		}
		r.audit(context.Background(), target, AuditEnabled, "mqtt command")
	case CommandDisable:
		if err := target.ch.Disable(); err != nil {
			return fmt.Errorf("recorder: disabling %s line %d: %w", device, line, err)
		}
		r.audit(context.Background(), target, AuditDisabled, "mqtt command")
	default:
		return fmt.Errorf("recorder: unknown command action %q on %s", cmd.Action, topic)
	}

	r.deps.Logger.Info("channel command applied",
		"device", device, "line", line, "action", cmd.Action)
	return nil
}

// parseCommandTopic extracts the device and line from a command topic.
func parseCommandTopic(topic string) (string, uint32, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[2] == "" {
		return "", 0, fmt.Errorf("recorder: malformed command topic %q", topic)
	}
	line, err := strconv.ParseUint(parts[3], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("recorder: bad line in command topic %q: %w", topic, err)
	}
	return parts[2], uint32(line), nil
}
