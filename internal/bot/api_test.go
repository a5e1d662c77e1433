package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hetham1/pillbot/internal/domain"
	"github.com/Hetham1/pillbot/internal/metrics"
)

func doRequest(t *testing.T, h http.Handler, method, path string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if auth {
		req.SetBasicAuth("admin", "secret")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) APIResponse {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return APIResponse{Success: resp.Success, Error: resp.Error}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := doRequest(t, f.bot.Handler(nil), http.MethodGet, "/health", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil, nil)
	assert.Equal(t, http.StatusNotFound, doRequest(t, f.bot.Handler(nil), http.MethodGet, "/metrics", false).Code)

	p := metrics.New()
	p.IncResponse("yes")
	f.bot.svc.Metrics = p.Handler()
	rec := doRequest(t, f.bot.Handler(nil), http.MethodGet, "/metrics", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pillbot_responses_total{choice="yes"} 1`)
}

func TestAPIRequiresAuth(t *testing.T) {
	f := newFixture(t, nil, nil)
	h := f.bot.Handler(nil)

	for _, path := range []string{"/api/stats", "/api/logs", "/api/users"} {
		rec := doRequest(t, h, http.MethodGet, path, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
	}
}

func TestAPIDisabledWithoutCredentials(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.bot.cfg.APIPassword = ""

	rec := doRequest(t, f.bot.Handler(nil), http.MethodGet, "/api/users", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIStats(t *testing.T) {
	f := newFixture(t, nil, []int64{111})
	h := f.bot.Handler(nil)

	rec := doRequest(t, h, http.MethodGet, "/api/stats", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode(t, rec, nil).Success)

	f.pressAs(&tgbotapi.User{ID: 111, UserName: "sarina"}, "no")

	var day domain.DailyLog
	rec = doRequest(t, h, http.MethodGet, "/api/stats?date=2025-03-01", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec, &day).Success)
	assert.Equal(t, "2025-03-01", day.Date)
	assert.Equal(t, 1, day.NoResponses)
	assert.Equal(t, 1, day.Users[111].NoCount)

	assert.Equal(t, http.StatusBadRequest, doRequest(t, h, http.MethodGet, "/api/stats?date=yesterday", true).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, doRequest(t, h, http.MethodPost, "/api/stats", true).Code)
}

func TestAPILogs(t *testing.T) {
	f := newFixture(t, nil, []int64{111})
	h := f.bot.Handler(nil)

	var logs []LogSummaryResponse
	rec := doRequest(t, h, http.MethodGet, "/api/logs", true)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &logs)
	assert.Empty(t, logs)

	f.pressAs(&tgbotapi.User{ID: 111}, "yes")
	f.now = f.now.AddDate(0, 0, 1)
	f.pressAs(&tgbotapi.User{ID: 111}, "no")

	rec = doRequest(t, h, http.MethodGet, "/api/logs?limit=1", true)
	decode(t, rec, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, LogSummaryResponse{Date: "2025-03-02", TotalResponses: 1, NoResponses: 1}, logs[0])

	assert.Equal(t, http.StatusBadRequest, doRequest(t, h, http.MethodGet, "/api/logs?limit=0", true).Code)
}

func TestAPIUsers(t *testing.T) {
	f := newFixture(t, []int64{222}, []int64{111})
	f.pressAs(&tgbotapi.User{ID: 111, UserName: "sarina"}, "yes")

	var users UsersResponse
	rec := doRequest(t, f.bot.Handler(nil), http.MethodGet, "/api/users", true)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &users)

	require.Len(t, users.Admins, 1)
	assert.Equal(t, int64(222), users.Admins[0].UserID)
	assert.Equal(t, "admin", users.Admins[0].Role)

	require.Len(t, users.RegularUsers, 1)
	u := users.RegularUsers[0]
	assert.Equal(t, "@sarina", u.Username)
	assert.Equal(t, 1, u.TotalYes)
	assert.Equal(t, "2025-03-01", u.FirstSeen)
}

func webhookRequest(ctx context.Context) *http.Request {
	body := `{"update_id":42,"message":{"message_id":1,"chat":{"id":111},"from":{"id":111},"text":"hi"}}`
	return httptest.NewRequest(http.MethodPost, webhookPath, strings.NewReader(body)).WithContext(ctx)
}

func TestWebhook_DeliversUpdate(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.bot.botAPI = &tgbotapi.BotAPI{}
	updates := make(chan tgbotapi.Update, 1)

	rec := httptest.NewRecorder()
	f.bot.Handler(updates).ServeHTTP(rec, webhookRequest(context.Background()))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, updates, 1)
	assert.Equal(t, 42, (<-updates).UpdateID)
}

func TestWebhook_DoesNotBlockWhenNobodyReads(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.bot.botAPI = &tgbotapi.BotAPI{}
	updates := make(chan tgbotapi.Update)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		f.bot.Handler(updates).ServeHTTP(httptest.NewRecorder(), webhookRequest(ctx))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook handler blocked on a full update channel")
	}
}
