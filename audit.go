package goGuard

import (
	"io"

	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/rs/zerolog"
)

// AuditEvent is one security-relevant occurrence emitted by the Engine.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink delivers audit events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// ZerologSink writes audit events as structured log lines.
type ZerologSink = audit.ZerologSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZerologSink returns a sink logging through logger.
func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return audit.NewZerologSink(logger)
}
