package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/auditpump/auditpump/internal/source"
	"github.com/auditpump/auditpump/internal/utils/logger"
	"go.uber.org/zap"
)

// FileSink appends newline-delimited JSON events to a local file. The whole
// batch is written in a single call, so a batch is either fully appended or
// the write fails.
type FileSink struct {
	path string
}

// NewFileSink creates a sink that appends events to the given file
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// AddEvents appends the batch to the file as one line per event
func (s *FileSink) AddEvents(ctx context.Context, events []source.Event) error {
	var buf bytes.Buffer
	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer file.Close()

	if _, err := file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append events to %s: %w", s.path, err)
	}

	logger.Info("Appended events to file",
		zap.Int("count", len(events)), zap.String("path", s.path))
	return nil
}

// Close is a no-op; the file handle is not held between batches
func (s *FileSink) Close() error {
	return nil
}
