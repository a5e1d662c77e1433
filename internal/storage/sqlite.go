package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Hetham1/pillbot/internal/domain"
)

type Storage struct {
	db *sqlx.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// sqlite allows a single writer; one connection keeps transactions serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS roster (
			user_id INTEGER PRIMARY KEY,
			role TEXT NOT NULL CHECK (role IN ('admin', 'regular'))
		)`,
		`CREATE TABLE IF NOT EXISTS daily_logs (
			date TEXT PRIMARY KEY,
			total_responses INTEGER NOT NULL DEFAULT 0,
			yes_responses INTEGER NOT NULL DEFAULT 0,
			no_responses INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS daily_users (
			date TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			total_responses INTEGER NOT NULL DEFAULT 0,
			yes_count INTEGER NOT NULL DEFAULT 0,
			no_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (date, user_id),
			FOREIGN KEY (date) REFERENCES daily_logs(date) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS responses (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			user_id INTEGER NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			response TEXT NOT NULL CHECK (response IN ('yes', 'no')),
			FOREIGN KEY (date) REFERENCES daily_logs(date) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_date ON responses(date)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_user_id ON responses(user_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// === Roster ===

type rosterRow struct {
	UserID int64           `db:"user_id"`
	Role   domain.UserRole `db:"role"`
}

func (s *Storage) LoadRoster() (domain.Roster, error) {
	var rows []rosterRow
	if err := s.db.Select(&rows, `SELECT user_id, role FROM roster ORDER BY user_id`); err != nil {
		return domain.Roster{}, fmt.Errorf("select roster: %w", err)
	}

	roles := make(map[int64]domain.UserRole, len(rows))
	for _, r := range rows {
		roles[r.UserID] = r.Role
	}
	return domain.RosterFromRoles(roles), nil
}

func (s *Storage) SaveRoster(r domain.Roster) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM roster`); err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}
	for id, role := range r.Roles() {
		if _, err := tx.Exec(`INSERT INTO roster (user_id, role) VALUES (?, ?)`, id, role); err != nil {
			return fmt.Errorf("insert roster %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// === Daily logs ===

type dayRow struct {
	Date           string `db:"date"`
	TotalResponses int    `db:"total_responses"`
	YesResponses   int    `db:"yes_responses"`
	NoResponses    int    `db:"no_responses"`
}

type userRow struct {
	UserID         int64  `db:"user_id"`
	Username       string `db:"username"`
	TotalResponses int    `db:"total_responses"`
	YesCount       int    `db:"yes_count"`
	NoCount        int    `db:"no_count"`
}

type responseRow struct {
	EventID   string    `db:"event_id"`
	Date      string    `db:"date"`
	Timestamp time.Time `db:"timestamp"`
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	Response  string    `db:"response"`
}

func (s *Storage) AppendResponse(ev domain.ResponseEvent) error {
	yes, no := 0, 0
	if ev.Choice == domain.ChoiceYes {
		yes = 1
	} else {
		no = 1
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO daily_logs (date, total_responses, yes_responses, no_responses) VALUES (?, 1, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_responses = total_responses + 1,
			yes_responses = yes_responses + excluded.yes_responses,
			no_responses = no_responses + excluded.no_responses`,
		ev.Date, yes, no,
	)
	if err != nil {
		return fmt.Errorf("upsert daily log: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO daily_users (date, user_id, username, total_responses, yes_count, no_count) VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(date, user_id) DO UPDATE SET
			total_responses = total_responses + 1,
			yes_count = yes_count + excluded.yes_count,
			no_count = no_count + excluded.no_count`,
		ev.Date, ev.UserID, ev.Username, yes, no,
	)
	if err != nil {
		return fmt.Errorf("upsert daily user: %w", err)
	}

	if err := insertResponse(tx, ev); err != nil {
		return err
	}
	return tx.Commit()
}

func insertResponse(tx *sqlx.Tx, ev domain.ResponseEvent) error {
	_, err := tx.Exec(
		`INSERT INTO responses (event_id, date, timestamp, user_id, username, response) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Date, ev.Timestamp, ev.UserID, ev.Username, ev.Choice,
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *Storage) DailyLog(date string) (*domain.DailyLog, error) {
	var day dayRow
	err := s.db.Get(&day, `SELECT date, total_responses, yes_responses, no_responses FROM daily_logs WHERE date = ?`, date)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select daily log: %w", err)
	}
	return s.loadDay(day)
}

func (s *Storage) loadDay(day dayRow) (*domain.DailyLog, error) {
	l := domain.NewDailyLog(day.Date)
	l.TotalResponses = day.TotalResponses
	l.YesResponses = day.YesResponses
	l.NoResponses = day.NoResponses

	var users []userRow
	err := s.db.Select(&users,
		`SELECT user_id, username, total_responses, yes_count, no_count FROM daily_users WHERE date = ?`, day.Date)
	if err != nil {
		return nil, fmt.Errorf("select daily users: %w", err)
	}
	for _, u := range users {
		l.Users[u.UserID] = &domain.UserDayStats{
			Username:       u.Username,
			TotalResponses: u.TotalResponses,
			YesCount:       u.YesCount,
			NoCount:        u.NoCount,
		}
	}

	var responses []responseRow
	err = s.db.Select(&responses,
		`SELECT event_id, date, timestamp, user_id, username, response FROM responses WHERE date = ? ORDER BY seq`, day.Date)
	if err != nil {
		return nil, fmt.Errorf("select responses: %w", err)
	}
	for _, r := range responses {
		l.Responses = append(l.Responses, domain.ResponseEvent{
			ID:        r.EventID,
			Date:      r.Date,
			Timestamp: r.Timestamp,
			UserID:    r.UserID,
			Username:  r.Username,
			Choice:    domain.Choice(r.Response),
		})
	}
	return l, nil
}

func (s *Storage) ListDates(limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	var dates []string
	if err := s.db.Select(&dates, `SELECT date FROM daily_logs ORDER BY date DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("select dates: %w", err)
	}
	return dates, nil
}

func (s *Storage) DailyLogs() ([]*domain.DailyLog, error) {
	var days []dayRow
	if err := s.db.Select(&days, `SELECT date, total_responses, yes_responses, no_responses FROM daily_logs ORDER BY date`); err != nil {
		return nil, fmt.Errorf("select daily logs: %w", err)
	}

	logs := make([]*domain.DailyLog, 0, len(days))
	for _, d := range days {
		l, err := s.loadDay(d)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// ReplaceDailyLog overwrites one date with l, used by imports.
func (s *Storage) ReplaceDailyLog(l *domain.DailyLog) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM responses WHERE date = ?`,
		`DELETE FROM daily_users WHERE date = ?`,
		`DELETE FROM daily_logs WHERE date = ?`,
	} {
		if _, err := tx.Exec(q, l.Date); err != nil {
			return fmt.Errorf("clear %s: %w", l.Date, err)
		}
	}

	_, err = tx.Exec(`INSERT INTO daily_logs (date, total_responses, yes_responses, no_responses) VALUES (?, ?, ?, ?)`,
		l.Date, l.TotalResponses, l.YesResponses, l.NoResponses)
	if err != nil {
		return fmt.Errorf("insert daily log: %w", err)
	}
	for id, u := range l.Users {
		_, err = tx.Exec(`INSERT INTO daily_users (date, user_id, username, total_responses, yes_count, no_count) VALUES (?, ?, ?, ?, ?, ?)`,
			l.Date, id, u.Username, u.TotalResponses, u.YesCount, u.NoCount)
		if err != nil {
			return fmt.Errorf("insert daily user %d: %w", id, err)
		}
	}
	for _, ev := range l.Responses {
		ev.Date = l.Date
		if err := insertResponse(tx, ev); err != nil {
			return err
		}
	}
	return tx.Commit()
}
