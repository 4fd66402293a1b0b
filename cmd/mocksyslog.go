package cmd

import (
	"fmt"
	"net"

	"github.com/auditpump/auditpump/internal/utils/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var mockSyslogPort int

// mockSyslogCmd runs a local UDP listener so the syslog sink can be
// exercised without a real collector.
var mockSyslogCmd = &cobra.Command{
	Use:   "mocksyslog",
	Short: "Run a mock syslog listener for manual testing",
	Long: `Run a UDP listener that prints received syslog messages. Point the
syslog sink at it to verify delivery:

  AUDITPUMP_SINK=syslog \
  AUDITPUMP_SYSLOG_HOST=127.0.0.1 AUDITPUMP_SYSLOG_PORT=5514 \
  auditpump run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := fmt.Sprintf(":%d", mockSyslogPort)
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		defer conn.Close()

		logger.Info("Mock syslog listener started", zap.String("addr", addr))

		buf := make([]byte, 65535)
		count := 0
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return fmt.Errorf("read failed: %w", err)
			}
			count++
			logger.Info("Received syslog message",
				zap.Int("seq", count),
				zap.String("from", from.String()),
				zap.String("message", string(buf[:n])))
		}
	},
}

func init() {
	rootCmd.AddCommand(mockSyslogCmd)

	mockSyslogCmd.Flags().IntVar(&mockSyslogPort, "port", 5514, "UDP port to listen on")
}
