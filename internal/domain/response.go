package domain

import "time"

// DateLayout keys daily logs (ISO calendar date in the reporting timezone).
const DateLayout = "2006-01-02"

type Choice string

const (
	ChoiceYes Choice = "yes"
	ChoiceNo  Choice = "no"
)

func (c Choice) Valid() bool {
	return c == ChoiceYes || c == ChoiceNo
}

type ResponseEvent struct {
	ID        string    `json:"id,omitempty"`
	Date      string    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Choice    Choice    `json:"response"`
}

// UserDayStats holds one user's counters inside a DailyLog.
type UserDayStats struct {
	Username       string `json:"username"`
	TotalResponses int    `json:"total_responses"`
	YesCount       int    `json:"yes_count"`
	NoCount        int    `json:"no_count"`
}

type DailyLog struct {
	Date           string                  `json:"date"`
	TotalResponses int                     `json:"total_responses"`
	YesResponses   int                     `json:"yes_responses"`
	NoResponses    int                     `json:"no_responses"`
	Users          map[int64]*UserDayStats `json:"users"`
	Responses      []ResponseEvent         `json:"responses"`
}

func NewDailyLog(date string) *DailyLog {
	return &DailyLog{
		Date:      date,
		Users:     make(map[int64]*UserDayStats),
		Responses: []ResponseEvent{},
	}
}

// Apply folds one response into the aggregates and the raw event list.
// The username snapshot is taken from the user's first response of the day.
func (l *DailyLog) Apply(ev ResponseEvent) {
	l.TotalResponses++
	u, ok := l.Users[ev.UserID]
	if !ok {
		u = &UserDayStats{Username: ev.Username}
		l.Users[ev.UserID] = u
	}
	u.TotalResponses++
	if ev.Choice == ChoiceYes {
		l.YesResponses++
		u.YesCount++
	} else {
		l.NoResponses++
		u.NoCount++
	}
	l.Responses = append(l.Responses, ev)
}

func (l *DailyLog) YesPercent() float64 {
	if l.TotalResponses == 0 {
		return 0
	}
	return float64(l.YesResponses) / float64(l.TotalResponses) * 100
}

func (l *DailyLog) NoPercent() float64 {
	if l.TotalResponses == 0 {
		return 0
	}
	return float64(l.NoResponses) / float64(l.TotalResponses) * 100
}

// UserSummary is one row of the user directory folded over all daily logs.
type UserSummary struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	TotalYes  int    `json:"total_yes"`
	TotalNo   int    `json:"total_no"`
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen"`
}

func (s UserSummary) Total() int {
	return s.TotalYes + s.TotalNo
}
