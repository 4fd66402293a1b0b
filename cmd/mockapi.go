package cmd

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/auditpump/auditpump/internal/utils/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	mockAPIPort        int
	mockAPIPageSize    int
	mockAPISeedEvents  int
	mockAPIAppendEvery time.Duration
	mockAPIExpireAfter int
)

// mockAPI is a local stand-in for the identity and audit-log APIs. It issues
// tokens, serves a canned event set in cursor-addressed pages, and can expire
// the issued token after a number of fetches so the refresh path gets
// exercised.
type mockAPI struct {
	mu          sync.Mutex
	events      []gin.H
	token       string
	fetches     int
	pageSize    int
	expireAfter int
}

func newMockAPI(seed, pageSize, expireAfter int) *mockAPI {
	api := &mockAPI{pageSize: pageSize, expireAfter: expireAfter}
	for i := 0; i < seed; i++ {
		api.events = append(api.events, newMockEvent(i))
	}
	return api
}

func newMockEvent(seq int) gin.H {
	return gin.H{
		"event_id":         uuid.NewString(),
		"event_saved_time": time.Now().UTC().Format(time.RFC3339Nano),
		"event_type":       "identity.user.login",
		"user_name":        fmt.Sprintf("user-%d", seq%5),
		"sequence":         seq,
	}
}

// appendEvent grows the event set, simulating new audit activity arriving
// after the poller has caught up.
func (a *mockAPI) appendEvent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, newMockEvent(len(a.events)))
}

// issueToken handles the identity exchange: any POST gets a fresh token in
// the X-Subject-Token response header with status 201.
func (a *mockAPI) issueToken(c *gin.Context) {
	a.mu.Lock()
	a.token = uuid.NewString()
	a.fetches = 0
	token := a.token
	a.mu.Unlock()

	logger.Info("Issued auth token")
	c.Header("X-Subject-Token", token)
	c.JSON(http.StatusCreated, gin.H{
		"token": gin.H{"issued_at": time.Now().UTC().Format(time.RFC3339)},
	})
}

// serveLogs handles the audit-log fetch. The cursor is the decimal offset of
// the next unserved event. A missing, wrong or expired X-Auth-Token gets 401
// so the client refreshes and retries the same cursor.
func (a *mockAPI) serveLogs(c *gin.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.fetches++
	if a.expireAfter > 0 && a.fetches > a.expireAfter {
		logger.Info("Expiring issued token", zap.Int("fetches", a.fetches))
		a.token = ""
	}
	if a.token == "" || c.GetHeader("X-Auth-Token") != a.token {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token missing or expired"})
		return
	}

	offset := 0
	if cursor := c.Query("cursor"); cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
		offset = n
	}

	limit := a.pageSize
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	end := offset + limit
	if end > len(a.events) {
		end = len(a.events)
	}
	page := []gin.H{}
	if offset < len(a.events) {
		page = a.events[offset:end]
	}

	next := ""
	if end < len(a.events) {
		next = strconv.Itoa(end)
	}

	logger.Info("Serving audit-log page",
		zap.Int("offset", offset),
		zap.Int("count", len(page)),
		zap.String("next_cursor", next))

	c.JSON(http.StatusOK, gin.H{
		"data":       page,
		"pagination": gin.H{"next_cursor": next},
	})
}

func (a *mockAPI) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/v3/auth/tokens", a.issueToken)
	r.POST("/v1/logs", a.serveLogs)
	return r
}

// mockAPICmd runs local stand-ins for the identity and audit-log APIs so the
// full poll loop can be exercised without real credentials.
var mockAPICmd = &cobra.Command{
	Use:   "mockapi",
	Short: "Run a mock identity + audit-log API for manual testing",
	Long: `Run a local server that issues auth tokens and serves canned audit-log
events in pages. Point the poller at it to exercise authentication,
pagination and token refresh end to end:

  AUDITPUMP_AUTH_URL=http://localhost:9090/v3/auth/tokens \
  AUDITPUMP_AUDIT_LOGS_URL=http://localhost:9090/v1/logs \
  AUDITPUMP_ACCOUNT_ID=123 AUDITPUMP_USERNAME=u AUDITPUMP_PASSWORD=p \
  auditpump run

New events are appended periodically so the caught-up poller keeps finding
work. With --expire-after the issued token is rejected after that many
fetches, forcing a refresh.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gin.SetMode(gin.ReleaseMode)

		api := newMockAPI(mockAPISeedEvents, mockAPIPageSize, mockAPIExpireAfter)

		if mockAPIAppendEvery > 0 {
			go func() {
				ticker := time.NewTicker(mockAPIAppendEvery)
				defer ticker.Stop()
				for range ticker.C {
					api.appendEvent()
					logger.Info("Appended new event")
				}
			}()
		}

		addr := fmt.Sprintf(":%d", mockAPIPort)
		logger.Info("Mock audit-log API listening",
			zap.String("addr", addr),
			zap.Int("seed_events", mockAPISeedEvents),
			zap.Int("page_size", mockAPIPageSize))
		return api.router().Run(addr)
	},
}

func init() {
	rootCmd.AddCommand(mockAPICmd)

	mockAPICmd.Flags().IntVar(&mockAPIPort, "port", 9090, "port to listen on")
	mockAPICmd.Flags().IntVar(&mockAPIPageSize, "page-size", 5, "events per page")
	mockAPICmd.Flags().IntVar(&mockAPISeedEvents, "seed-events", 25, "events available at startup")
	mockAPICmd.Flags().DurationVar(&mockAPIAppendEvery, "append-every", 15*time.Second, "interval for appending a new event (0 disables)")
	mockAPICmd.Flags().IntVar(&mockAPIExpireAfter, "expire-after", 0, "expire the token after this many fetches (0 disables)")
}
