package mqtt

import "fmt"

// TopicPrefix is the base of the hwts/ topic hierarchy. The scheme is
// hwts/{category}/{device}/{line}.
const TopicPrefix = "hwts"

// Topics builds the topics the service publishes and subscribes to.
// Using the builders keeps naming consistent between the recorder, the
// command listener, and external consumers.
//
//	mqtt.Topics{}.ChannelTimestamp("sim0", 3) // "hwts/ts/sim0/3"
type Topics struct{}

// ChannelTimestamp is where drained timestamps for a channel are
// published, e.g. hwts/ts/sim0/3.
func (Topics) ChannelTimestamp(device string, line uint32) string {
	return fmt.Sprintf("%s/ts/%s/%d", TopicPrefix, device, line)
}

// ChannelDrops carries drop-counter updates for a channel, published
// when the counter moves, e.g. hwts/drops/sim0/3.
func (Topics) ChannelDrops(device string, line uint32) string {
	return fmt.Sprintf("%s/drops/%s/%d", TopicPrefix, device, line)
}

// ChannelLifecycle carries requested/enabled/disabled/released events
// for a channel, e.g. hwts/lifecycle/sim0/3.
func (Topics) ChannelLifecycle(device string, line uint32) string {
	return fmt.Sprintf("%s/lifecycle/%s/%d", TopicPrefix, device, line)
}

// ChannelCommand is the per-channel command topic external tooling
// publishes enable/disable requests to, e.g. hwts/cmd/sim0/3.
func (Topics) ChannelCommand(device string, line uint32) string {
	return fmt.Sprintf("%s/cmd/%s/%d", TopicPrefix, device, line)
}

// AllChannelCommands is the wildcard the recorder's command listener
// subscribes to: hwts/cmd/+/+.
func (Topics) AllChannelCommands() string {
	return fmt.Sprintf("%s/cmd/+/+", TopicPrefix)
}

// DeviceHealth carries retained per-device health status,
// e.g. hwts/health/sim0.
func (Topics) DeviceHealth(device string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, device)
}

// SystemStatus is the retained service status topic; also the LWT
// topic, so a crash flips it to offline without our help.
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", TopicPrefix)
}
