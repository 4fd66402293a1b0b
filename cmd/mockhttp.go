package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/auditpump/auditpump/internal/utils/logger"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	mockHTTPPort     int
	mockHTTPUsername string
	mockHTTPPassword string
)

// mockHTTPCmd runs a local stand-in for an HTTP event receiver so the http
// sink can be exercised without a real SIEM endpoint.
var mockHTTPCmd = &cobra.Command{
	Use:   "mockhttp",
	Short: "Run a mock HTTP event receiver for manual testing",
	Long: `Run a local HTTP server that accepts Basic Auth POSTs and logs the
received events. Point the http sink at it to verify delivery end to end:

  AUDITPUMP_SINK=http \
  AUDITPUMP_HTTP_URL=http://localhost:8080/events \
  AUDITPUMP_HTTP_USERNAME=admin AUDITPUMP_HTTP_PASSWORD=secret \
  auditpump run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery())

		accounts := gin.Accounts{mockHTTPUsername: mockHTTPPassword}
		authorized := r.Group("/", gin.BasicAuth(accounts))

		authorized.POST("/*path", func(c *gin.Context) {
			var event map[string]any
			if err := c.ShouldBindJSON(&event); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
				return
			}

			pretty, _ := json.MarshalIndent(event, "", "  ")
			logger.Info("Received event",
				zap.String("path", c.Request.URL.Path),
				zap.String("event", string(pretty)))

			c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Event received"})
		})

		addr := fmt.Sprintf(":%d", mockHTTPPort)
		logger.Info("Mock HTTP receiver listening",
			zap.String("addr", addr),
			zap.String("username", mockHTTPUsername))
		return r.Run(addr)
	},
}

func init() {
	rootCmd.AddCommand(mockHTTPCmd)

	mockHTTPCmd.Flags().IntVar(&mockHTTPPort, "port", 8080, "port to listen on")
	mockHTTPCmd.Flags().StringVar(&mockHTTPUsername, "username", "admin", "expected Basic Auth username")
	mockHTTPCmd.Flags().StringVar(&mockHTTPPassword, "password", "secret", "expected Basic Auth password")
}
