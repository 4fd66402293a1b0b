package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type mockLogsPage struct {
	Data       []map[string]any `json:"data"`
	Pagination struct {
		NextCursor string `json:"next_cursor"`
	} `json:"pagination"`
}

func obtainToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v3/auth/tokens", nil)
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("token request status = %d, want %d", w.Code, http.StatusCreated)
	}
	token := w.Header().Get("X-Subject-Token")
	if token == "" {
		t.Fatal("expected X-Subject-Token header")
	}
	return token
}

func fetchLogs(t *testing.T, handler http.Handler, token, cursor string) (int, *mockLogsPage) {
	t.Helper()

	url := "/v1/logs?limit=100"
	if cursor != "" {
		url += "&cursor=" + cursor
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, url, nil)
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		return w.Code, nil
	}
	var page mockLogsPage
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to decode page: %v", err)
	}
	return w.Code, &page
}

func TestMockAPIIssuesToken(t *testing.T) {
	handler := newMockAPI(3, 5, 0).router()

	first := obtainToken(t, handler)
	second := obtainToken(t, handler)
	if first == second {
		t.Fatal("expected each exchange to issue a distinct token")
	}
}

func TestMockAPIRejectsMissingOrWrongToken(t *testing.T) {
	handler := newMockAPI(3, 5, 0).router()

	if status, _ := fetchLogs(t, handler, "", ""); status != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want %d", status, http.StatusUnauthorized)
	}

	obtainToken(t, handler)
	if status, _ := fetchLogs(t, handler, "not-the-token", ""); status != http.StatusUnauthorized {
		t.Fatalf("status with wrong token = %d, want %d", status, http.StatusUnauthorized)
	}
}

func TestMockAPIPagination(t *testing.T) {
	handler := newMockAPI(7, 3, 0).router()
	token := obtainToken(t, handler)

	status, page := fetchLogs(t, handler, token, "")
	if status != http.StatusOK {
		t.Fatalf("first page status = %d", status)
	}
	if len(page.Data) != 3 {
		t.Fatalf("first page has %d events, want 3", len(page.Data))
	}
	if page.Pagination.NextCursor != "3" {
		t.Fatalf("first page next_cursor = %q, want %q", page.Pagination.NextCursor, "3")
	}
	for _, event := range page.Data {
		id, _ := event["event_id"].(string)
		savedTime, _ := event["event_saved_time"].(string)
		if id == "" || savedTime == "" {
			t.Fatalf("event missing identity fields: %v", event)
		}
	}

	_, page = fetchLogs(t, handler, token, page.Pagination.NextCursor)
	if len(page.Data) != 3 || page.Pagination.NextCursor != "6" {
		t.Fatalf("second page: %d events, next_cursor %q", len(page.Data), page.Pagination.NextCursor)
	}

	_, page = fetchLogs(t, handler, token, page.Pagination.NextCursor)
	if len(page.Data) != 1 {
		t.Fatalf("final page has %d events, want 1", len(page.Data))
	}
	if page.Pagination.NextCursor != "" {
		t.Fatalf("final page next_cursor = %q, want empty", page.Pagination.NextCursor)
	}
}

func TestMockAPICaughtUpPageIsEmpty(t *testing.T) {
	handler := newMockAPI(2, 5, 0).router()
	token := obtainToken(t, handler)

	_, page := fetchLogs(t, handler, token, "2")
	if len(page.Data) != 0 || page.Pagination.NextCursor != "" {
		t.Fatalf("caught-up page: %d events, next_cursor %q", len(page.Data), page.Pagination.NextCursor)
	}
}

func TestMockAPIAppendGrowsEventSet(t *testing.T) {
	api := newMockAPI(2, 5, 0)
	handler := api.router()
	token := obtainToken(t, handler)

	api.appendEvent()

	_, page := fetchLogs(t, handler, token, "2")
	if len(page.Data) != 1 {
		t.Fatalf("expected the appended event at cursor 2, got %d events", len(page.Data))
	}
	if page.Pagination.NextCursor != "" {
		t.Fatalf("next_cursor = %q, want empty", page.Pagination.NextCursor)
	}
}

func TestMockAPITokenExpiry(t *testing.T) {
	api := newMockAPI(10, 2, 2)
	handler := api.router()
	token := obtainToken(t, handler)

	for i := 0; i < 2; i++ {
		if status, _ := fetchLogs(t, handler, token, ""); status != http.StatusOK {
			t.Fatalf("fetch %d status = %d, want %d", i+1, status, http.StatusOK)
		}
	}
	if status, _ := fetchLogs(t, handler, token, ""); status != http.StatusUnauthorized {
		t.Fatalf("fetch after expiry status = %d, want %d", status, http.StatusUnauthorized)
	}

	refreshed := obtainToken(t, handler)
	if status, _ := fetchLogs(t, handler, refreshed, ""); status != http.StatusOK {
		t.Fatalf("fetch with refreshed token status = %d, want %d", status, http.StatusOK)
	}
}

func TestMockAPIRejectsBadCursor(t *testing.T) {
	handler := newMockAPI(3, 5, 0).router()
	token := obtainToken(t, handler)

	if status, _ := fetchLogs(t, handler, token, "not-a-number"); status != http.StatusBadRequest {
		t.Fatalf("status with bad cursor = %d, want %d", status, http.StatusBadRequest)
	}
}
