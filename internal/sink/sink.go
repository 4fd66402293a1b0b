package sink

import (
	"context"
	"fmt"

	"github.com/auditpump/auditpump/internal/config"
	"github.com/auditpump/auditpump/internal/source"
	"github.com/auditpump/auditpump/internal/utils/logger"
	"go.uber.org/zap"
)

// Sink defines the interface for event destinations. From the caller's
// perspective delivery is all-or-nothing per batch: a nil return means every
// event in the batch was delivered.
type Sink interface {
	// AddEvents delivers a batch of events to the destination
	AddEvents(ctx context.Context, events []source.Event) error

	// Close releases any held connection. Safe to call once at shutdown.
	Close() error
}

// New creates the sink selected by the configuration. Unknown sink types are
// a fatal startup error upstream.
func New(settings *config.Settings) (Sink, error) {
	switch settings.SinkType {
	case config.SinkFile:
		logger.Info("Using file sink", zap.String("path", settings.FilePath))
		return NewFileSink(settings.FilePath), nil
	case config.SinkSyslog:
		logger.Info("Using syslog sink",
			zap.String("host", settings.SyslogHost),
			zap.Int("port", settings.SyslogPort),
			zap.String("protocol", settings.SyslogProtocol))
		return NewSyslogSink(settings.SyslogProtocol, settings.SyslogHost, settings.SyslogPort)
	case config.SinkHTTP:
		logger.Info("Using http sink", zap.String("url", settings.HTTPURL))
		return NewHTTPSink(settings.HTTPURL, settings.HTTPUsername, settings.HTTPPassword, settings.HTTPVerifyTLS), nil
	default:
		return nil, fmt.Errorf("unknown sink type: %s", settings.SinkType)
	}
}
