package bot

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/Hetham1/pillbot/internal/domain"
)

// API Response types
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type LogSummaryResponse struct {
	Date           string `json:"date"`
	TotalResponses int    `json:"total_responses"`
	YesResponses   int    `json:"yes_responses"`
	NoResponses    int    `json:"no_responses"`
}

type UserResponse struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	Role      string `json:"role"`
	TotalYes  int    `json:"total_yes"`
	TotalNo   int    `json:"total_no"`
	FirstSeen string `json:"first_seen,omitempty"`
	LastSeen  string `json:"last_seen,omitempty"`
}

type UsersResponse struct {
	Admins       []UserResponse `json:"admins"`
	RegularUsers []UserResponse `json:"regular_users"`
}

// setupAPI registers the read-only admin API behind Basic Auth. It stays
// off unless both credentials are configured.
func (b *Bot) setupAPI(mux *http.ServeMux) {
	if !b.cfg.APIEnabled() {
		return
	}

	mux.HandleFunc("/api/stats", b.basicAuth(b.apiStats))
	mux.HandleFunc("/api/logs", b.basicAuth(b.apiLogs))
	mux.HandleFunc("/api/users", b.basicAuth(b.apiUsers))
}

// basicAuth middleware
func (b *Bot) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || !secureEqual(username, b.cfg.APIUsername) || !secureEqual(password, b.cfg.APIPassword) {
			w.Header().Set("WWW-Authenticate", `Basic realm="PillBot API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (b *Bot) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func (b *Bot) jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

// GET /api/stats?date=YYYY-MM-DD - one day, today by default
func (b *Bot) apiStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = b.today()
	} else if _, err := time.Parse(domain.DateLayout, date); err != nil {
		b.jsonError(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	l, ok := b.svc.Stats.GetDailyStats(date)
	if !ok {
		b.jsonError(w, "No data for "+date, http.StatusNotFound)
		return
	}
	b.jsonResponse(w, l)
}

// GET /api/logs?limit=N - most recent days first
func (b *Bot) apiLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := logsShown
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			b.jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	result := []LogSummaryResponse{}
	for _, l := range b.svc.Stats.RecentDays(limit) {
		result = append(result, LogSummaryResponse{
			Date:           l.Date,
			TotalResponses: l.TotalResponses,
			YesResponses:   l.YesResponses,
			NoResponses:    l.NoResponses,
		})
	}
	b.jsonResponse(w, result)
}

// GET /api/users - roster with lifetime answer counts
func (b *Bot) apiUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dir := b.svc.Stats.BuildUserDirectory()
	toResponse := func(ids []int64, role domain.UserRole) []UserResponse {
		out := make([]UserResponse, 0, len(ids))
		for _, id := range ids {
			u := dir[id]
			out = append(out, UserResponse{
				UserID:    id,
				Username:  u.Username,
				Role:      string(role),
				TotalYes:  u.TotalYes,
				TotalNo:   u.TotalNo,
				FirstSeen: u.FirstSeen,
				LastSeen:  u.LastSeen,
			})
		}
		return out
	}

	b.jsonResponse(w, UsersResponse{
		Admins:       toResponse(b.svc.Roster.Admins(), domain.RoleAdmin),
		RegularUsers: toResponse(b.svc.Roster.RegularUsers(), domain.RoleRegular),
	})
}
