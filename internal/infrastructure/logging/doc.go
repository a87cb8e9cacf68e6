// Package logging configures structured logging for HWTS Core.
//
// It wraps Go's log/slog so every component logs through one handler
// with service and version fields attached to every record. Components
// derive their own logger via With rather than constructing handlers:
//
//	log := logging.New(cfg.Logging, version)
//	recLog := log.With("component", "recorder")
//	recLog.Info("drain worker started", "device", "sim0", "line", 3)
//
// # Configuration
//
// The logging section of config.yaml drives the handler:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// JSON is the production format; text is for reading a terminal during
// development.
//
// # Security
//
// Never log secrets, tokens, passwords, or API keys. Redact before
// logging:
//
//	log.Info("API key used", "key_prefix", key[:8]+"...")
package logging
