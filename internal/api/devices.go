package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hwts/hwts-core/internal/hte"
)

// deviceResponse is the detail payload for a single provider device.
type deviceResponse struct {
	hte.DeviceInfo
	Clock    *hte.ClockInfo    `json:"clock,omitempty"`
	Channels []hte.ChannelInfo `json:"channels"`
}

// channelResponse is the detail payload for one monitored channel.
type channelResponse struct {
	Device       string `json:"device"`
	Line         uint32 `json:"line"`
	TranslatedID uint32 `json:"translated_id"`
	Label        string `json:"label"`
	Enabled      bool   `json:"enabled"`
	Seq          uint64 `json:"seq"`
	Dropped      uint64 `json:"dropped"`
}

// handleListDevices returns a snapshot of every registered provider device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one device with its clock info and per-channel
// counters.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	resp := deviceResponse{
		DeviceInfo: dev.Info(),
		Channels:   dev.Channels(),
	}
	if clock, err := dev.ClockInfo(); err == nil {
		resp.Clock = &clock
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListChannels returns the per-channel counter snapshot for a device.
// Channels are keyed by translated id, the provider-local slot.
func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	channels := dev.Channels()
	writeJSON(w, http.StatusOK, map[string]any{
		"device":   dev.Name(),
		"channels": channels,
		"count":    len(channels),
	})
}

// handleGetChannel returns the state of one monitored channel, addressed by
// its logical line id.
func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	ch, device, line, ok := s.lookupMonitoredChannel(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, channelResponse{
		Device:       device,
		Line:         line,
		TranslatedID: ch.TranslatedID(),
		Label:        ch.Label(),
		Enabled:      ch.Enabled(),
		Seq:          ch.Seq(),
		Dropped:      ch.Dropped(),
	})
}

// handleEnableChannel resumes timestamp delivery on a monitored channel.
func (s *Server) handleEnableChannel(w http.ResponseWriter, r *http.Request) {
	ch, device, line, ok := s.lookupMonitoredChannel(w, r)
	if !ok {
		return
	}

	if err := ch.Enable(); err != nil {
		s.logger.Warn("enabling channel via API",
			"device", device, "line", line, "error", err)
		writeConflict(w, "provider refused to enable the line")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device":  device,
		"line":    line,
		"enabled": true,
	})
}

// handleDisableChannel pauses timestamp delivery on a monitored channel.
// The sequence counter keeps advancing while disabled.
func (s *Server) handleDisableChannel(w http.ResponseWriter, r *http.Request) {
	ch, device, line, ok := s.lookupMonitoredChannel(w, r)
	if !ok {
		return
	}

	if err := ch.Disable(); err != nil {
		s.logger.Warn("disabling channel via API",
			"device", device, "line", line, "error", err)
		writeConflict(w, "provider refused to disable the line")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device":  device,
		"line":    line,
		"enabled": false,
	})
}

// lookupDevice resolves the {name} URL parameter to a registered device,
// writing the error response itself on failure.
func (s *Server) lookupDevice(w http.ResponseWriter, r *http.Request) (*hte.Device, bool) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeBadRequest(w, "device name is required")
		return nil, false
	}

	dev, err := s.registry.Lookup(name)
	if err != nil {
		writeNotFound(w, "device not found")
		return nil, false
	}
	return dev, true
}

// lookupMonitoredChannel resolves {name} and {line} to a channel held by
// the recorder, writing the error response itself on failure.
func (s *Server) lookupMonitoredChannel(w http.ResponseWriter, r *http.Request) (*hte.Channel, string, uint32, bool) {
	name := chi.URLParam(r, "name")
	lineParam := chi.URLParam(r, "line")

	line64, err := strconv.ParseUint(lineParam, 10, 32)
	if err != nil {
		writeBadRequest(w, "line must be an unsigned integer")
		return nil, "", 0, false
	}
	line := uint32(line64)

	if s.recorder == nil {
		writeNotFound(w, "no monitors configured")
		return nil, "", 0, false
	}

	ch, ok := s.recorder.Channel(name, line)
	if !ok {
		writeNotFound(w, "channel is not monitored")
		return nil, "", 0, false
	}
	return ch, name, line, true
}
