package server

import (
	"go.uber.org/zap"
)

// StreamLogger provides structured logging for stream connection events
type StreamLogger struct {
	logger *zap.Logger
}

// NewStreamLogger creates a new stream logger
func NewStreamLogger() *StreamLogger {
	return &StreamLogger{
		logger: zap.L().With(zap.String("component", "stream")),
	}
}

// Info logs info level event
func (l *StreamLogger) Info(event string, agentID string, connID string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("agent_id", agentID),
		zap.String("conn_id", connID),
	}, fields...)
	l.logger.Info("stream_event", allFields...)
}

// Error logs error level event
func (l *StreamLogger) Error(event string, agentID string, connID string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("agent_id", agentID),
		zap.String("conn_id", connID),
		zap.Error(err),
	}, fields...)
	l.logger.Error("stream_error", allFields...)
}

// Warn logs warning level event
func (l *StreamLogger) Warn(event string, agentID string, connID string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("agent_id", agentID),
		zap.String("conn_id", connID),
	}, fields...)
	l.logger.Warn("stream_warning", allFields...)
}
