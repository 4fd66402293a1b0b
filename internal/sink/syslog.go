package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RackSec/srslog"
	"github.com/auditpump/auditpump/internal/source"
	"github.com/auditpump/auditpump/internal/utils/logger"
	"go.uber.org/zap"
)

// SyslogSink sends each event as one syslog message to a remote listener.
// Per-event failure within a batch is possible; the batch errors if any
// event failed so the caller does not advance past undelivered events.
type SyslogSink struct {
	writer *srslog.Writer
	addr   string
}

// NewSyslogSink dials the syslog listener. The connection is owned by the
// sink for its full lifetime and released in Close.
func NewSyslogSink(protocol, host string, port int) (*SyslogSink, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	writer, err := srslog.Dial(protocol, addr, srslog.LOG_INFO|srslog.LOG_USER, "auditpump")
	if err != nil {
		return nil, fmt.Errorf("failed to dial syslog at %s: %w", addr, err)
	}
	writer.SetFormatter(srslog.RFC3164Formatter)
	return &SyslogSink{writer: writer, addr: addr}, nil
}

// AddEvents sends each event in the batch as an individual syslog message
func (s *SyslogSink) AddEvents(ctx context.Context, events []source.Event) error {
	logger.Info("Sending batch via syslog",
		zap.Int("count", len(events)), zap.String("addr", s.addr))

	sent := 0
	for _, event := range events {
		message, err := json.Marshal(event)
		if err != nil {
			logger.Error("Failed to marshal event for syslog", zap.Error(err))
			continue
		}
		if err := s.writer.Info(string(message)); err != nil {
			logger.Error("Failed to send event via syslog", zap.Error(err))
			continue
		}
		sent++
	}

	logger.Info("Syslog batch send completed",
		zap.Int("sent", sent), zap.Int("total", len(events)))

	if sent < len(events) {
		return fmt.Errorf("only %d/%d events sent via syslog", sent, len(events))
	}
	return nil
}

// Close closes the syslog connection
func (s *SyslogSink) Close() error {
	logger.Debug("Closing syslog connection", zap.String("addr", s.addr))
	return s.writer.Close()
}
