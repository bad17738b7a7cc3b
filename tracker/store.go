// Package tracker is the lead-tracking dashboard: a SQLite-backed store
// of leads seeded from pipeline output, with a JSON API for working the
// list (status changes, notes, activity history, stats).
package tracker

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Statuses is the lead workflow, in order.
var Statuses = []string{"new", "contacted", "invited", "confirmed", "declined", "not_interested"}

// StatusLabels maps status keys to display labels.
var StatusLabels = map[string]string{
	"new":            "New",
	"contacted":      "Contacted",
	"invited":        "Invited",
	"confirmed":      "Confirmed",
	"declined":       "Declined",
	"not_interested": "Not Interested",
}

var (
	ErrNotFound      = errors.New("lead not found")
	ErrNoFields      = errors.New("no fields to update")
	ErrUnknownStatus = errors.New("unknown status")
)

// Lead is one tracked lead. Timestamp columns are ISO-8601 strings, empty
// until the matching status is reached.
type Lead struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Website       string `json:"website"`
	Email         string `json:"email"`
	Rating        string `json:"rating"`
	PriorityScore int    `json:"priority_score"`
	Notes         string `json:"notes"`
	Status        string `json:"status"`
	LinkedInURL   string `json:"linkedin_url"`
	DinnerRSVP    string `json:"dinner_rsvp"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	ContactedAt   string `json:"contacted_at"`
	InvitedAt     string `json:"invited_at"`
	ConfirmedAt   string `json:"confirmed_at"`

	// Search links are computed per response, not stored.
	LinkedInSearch  string `json:"linkedin_search,omitempty"`
	LinkedInMessage string `json:"linkedin_message,omitempty"`
}

// Activity is one activity_log entry.
type Activity struct {
	ID        int64  `json:"id"`
	LeadID    int64  `json:"lead_id"`
	Action    string `json:"action"`
	Details   string `json:"details"`
	CreatedAt string `json:"created_at"`
}

// LeadFilter narrows ListLeads results. Zero values mean no filtering;
// HasEmail accepts "yes" or "no".
type LeadFilter struct {
	Status   string
	Type     string
	Search   string
	HasEmail string
}

// LeadUpdate carries the PATCH body. Nil pointers leave the column alone.
type LeadUpdate struct {
	Status      *string `json:"status"`
	Notes       *string `json:"notes"`
	LinkedInURL *string `json:"linkedin_url"`
	DinnerRSVP  *string `json:"dinner_rsvp"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Website     *string `json:"website"`
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the tracker database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma foreign_keys: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS leads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			type TEXT DEFAULT '',
			address TEXT DEFAULT '',
			phone TEXT DEFAULT '',
			website TEXT DEFAULT '',
			email TEXT DEFAULT '',
			rating TEXT DEFAULT '',
			priority_score INTEGER DEFAULT 0,
			notes TEXT DEFAULT '',
			status TEXT DEFAULT 'new',
			linkedin_url TEXT DEFAULT '',
			dinner_rsvp TEXT DEFAULT '',
			created_at TEXT DEFAULT (datetime('now')),
			updated_at TEXT DEFAULT (datetime('now')),
			contacted_at TEXT DEFAULT '',
			invited_at TEXT DEFAULT '',
			confirmed_at TEXT DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS activity_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			lead_id INTEGER,
			action TEXT,
			details TEXT DEFAULT '',
			created_at TEXT DEFAULT (datetime('now')),
			FOREIGN KEY (lead_id) REFERENCES leads(id)
		);
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SeedFromCSV imports leads from a pipeline CSV, but only into an empty
// database; re-running the tracker never duplicates or resets leads. It
// returns how many rows were imported.
func (s *Store) SeedFromCSV(ctx context.Context, csvPath string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	f, err := os.Open(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return 0, nil
	}

	idx := map[string]int{}
	for i, h := range rows[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	field := func(row []string, keys ...string) string {
		for _, k := range keys {
			if i, ok := idx[k]; ok && i < len(row) {
				if v := strings.TrimSpace(row[i]); v != "" {
					return v
				}
			}
		}
		return ""
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO leads (name, type, address, phone, website, email, rating, priority_score, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	imported := 0
	for _, row := range rows[1:] {
		name := field(row, "name")
		if name == "" {
			continue
		}
		score, _ := strconv.Atoi(field(row, "priority_score"))
		_, err := stmt.ExecContext(ctx,
			name,
			field(row, "type", "categories"),
			field(row, "address"),
			field(row, "phone"),
			field(row, "website"),
			field(row, "email"),
			field(row, "rating"),
			score,
			field(row, "notes"),
		)
		if err != nil {
			return 0, fmt.Errorf("insert lead %q: %w", name, err)
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return imported, nil
}

const leadColumns = `id, name, type, address, phone, website, email, rating,
	priority_score, notes, status, linkedin_url, dinner_rsvp,
	created_at, updated_at, contacted_at, invited_at, confirmed_at`

func scanLead(rows *sql.Rows) (Lead, error) {
	var l Lead
	err := rows.Scan(&l.ID, &l.Name, &l.Type, &l.Address, &l.Phone, &l.Website,
		&l.Email, &l.Rating, &l.PriorityScore, &l.Notes, &l.Status,
		&l.LinkedInURL, &l.DinnerRSVP, &l.CreatedAt, &l.UpdatedAt,
		&l.ContactedAt, &l.InvitedAt, &l.ConfirmedAt)
	return l, err
}

// ListLeads returns leads matching the filter, highest priority first,
// then by name.
func (s *Store) ListLeads(ctx context.Context, f LeadFilter) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var params []any

	if f.Status != "" {
		query += ` AND status = ?`
		params = append(params, f.Status)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		params = append(params, f.Type)
	}
	if f.Search != "" {
		query += ` AND (name LIKE ? OR email LIKE ? OR address LIKE ? OR phone LIKE ?)`
		s := "%" + f.Search + "%"
		params = append(params, s, s, s, s)
	}
	switch f.HasEmail {
	case "yes":
		query += ` AND email != ''`
	case "no":
		query += ` AND email = ''`
	}
	query += ` ORDER BY priority_score DESC, name ASC`

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads := []Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// UpdateLead applies the non-nil fields of upd to one lead, stamps the
// status-transition timestamp when the status changes, and records the
// change in the activity log.
func (s *Store) UpdateLead(ctx context.Context, id int64, upd LeadUpdate) error {
	var sets []string
	var params []any

	set := func(column string, v *string) {
		if v != nil {
			sets = append(sets, column+" = ?")
			params = append(params, *v)
		}
	}
	set("status", upd.Status)
	set("notes", upd.Notes)
	set("linkedin_url", upd.LinkedInURL)
	set("dinner_rsvp", upd.DinnerRSVP)
	set("email", upd.Email)
	set("phone", upd.Phone)
	set("website", upd.Website)

	if len(sets) == 0 {
		return ErrNoFields
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if upd.Status != nil {
		if _, ok := StatusLabels[*upd.Status]; !ok {
			return ErrUnknownStatus
		}
		if col := statusTimestampColumn(*upd.Status); col != "" {
			sets = append(sets, col+" = ?")
			params = append(params, now)
		}
	}
	sets = append(sets, "updated_at = ?")
	params = append(params, now, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE leads SET `+strings.Join(sets, ", ")+` WHERE id = ?`, params...)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	action := "updated"
	details := ""
	if upd.Notes != nil {
		details = *upd.Notes
	}
	if upd.Status != nil {
		action = *upd.Status
		details = "Status changed to " + StatusLabels[*upd.Status]
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO activity_log (lead_id, action, details) VALUES (?, ?, ?)`,
		id, action, details); err != nil {
		return fmt.Errorf("log activity: %w", err)
	}

	return tx.Commit()
}

// BulkUpdateStatus moves every listed lead to status and logs each move.
// It returns how many leads were updated.
func (s *Store) BulkUpdateStatus(ctx context.Context, ids []int64, status string) (int, error) {
	if _, ok := StatusLabels[status]; !ok {
		return 0, ErrUnknownStatus
	}

	now := time.Now().UTC().Format(time.RFC3339)
	sets := "status = ?, updated_at = ?"
	if col := statusTimestampColumn(status); col != "" {
		sets += ", " + col + " = ?"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk update: %w", err)
	}
	defer tx.Rollback()

	updated := 0
	for _, id := range ids {
		params := []any{status, now}
		if statusTimestampColumn(status) != "" {
			params = append(params, now)
		}
		params = append(params, id)

		res, err := tx.ExecContext(ctx, `UPDATE leads SET `+sets+` WHERE id = ?`, params...)
		if err != nil {
			return 0, fmt.Errorf("bulk update lead %d: %w", id, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			continue
		}
		updated++

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activity_log (lead_id, action, details) VALUES (?, ?, ?)`,
			id, status, "Bulk status change to "+StatusLabels[status]); err != nil {
			return 0, fmt.Errorf("log bulk activity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

// LeadLog returns the activity history for one lead, newest first.
func (s *Store) LeadLog(ctx context.Context, id int64) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, lead_id, action, details, created_at
		FROM activity_log
		WHERE lead_id = ?
		ORDER BY created_at DESC, id DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("lead log: %w", err)
	}
	defer rows.Close()

	log := []Activity{}
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.LeadID, &a.Action, &a.Details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		log = append(log, a)
	}
	return log, rows.Err()
}

// RecentActivity is one row of the dashboard activity feed.
type RecentActivity struct {
	Name      string `json:"name"`
	Action    string `json:"action"`
	Details   string `json:"details"`
	CreatedAt string `json:"created_at"`
}

// StatsResult is the dashboard stats payload.
type StatsResult struct {
	Total          int               `json:"total"`
	ByStatus       map[string]int    `json:"by_status"`
	ByType         map[string]int    `json:"by_type"`
	WithEmail      int               `json:"with_email"`
	WithWebsite    int               `json:"with_website"`
	WithPhone      int               `json:"with_phone"`
	RecentActivity []RecentActivity  `json:"recent_activity"`
	StatusLabels   map[string]string `json:"status_labels"`
}

// Stats aggregates the dashboard counters. Every known status appears in
// ByStatus even when its count is zero.
func (s *Store) Stats(ctx context.Context) (*StatsResult, error) {
	out := &StatsResult{
		ByStatus:       map[string]int{},
		ByType:         map[string]int{},
		RecentActivity: []RecentActivity{},
		StatusLabels:   StatusLabels,
	}
	for _, st := range Statuses {
		out.ByStatus[st] = 0
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(email != ''), 0),
			COALESCE(SUM(website != ''), 0),
			COALESCE(SUM(phone != ''), 0)
		FROM leads
	`).Scan(&out.Total, &out.WithEmail, &out.WithWebsite, &out.WithPhone)
	if err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("stats by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out.ByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	typeRows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM leads GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("stats by type: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var leadType string
		var n int
		if err := typeRows.Scan(&leadType, &n); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		out.ByType[leadType] = n
	}
	if err := typeRows.Err(); err != nil {
		return nil, err
	}

	actRows, err := s.db.QueryContext(ctx, `
		SELECT l.name, a.action, a.details, a.created_at
		FROM activity_log a JOIN leads l ON l.id = a.lead_id
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT 15
	`)
	if err != nil {
		return nil, fmt.Errorf("stats recent activity: %w", err)
	}
	defer actRows.Close()
	for actRows.Next() {
		var ra RecentActivity
		if err := actRows.Scan(&ra.Name, &ra.Action, &ra.Details, &ra.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recent activity: %w", err)
		}
		out.RecentActivity = append(out.RecentActivity, ra)
	}
	return out, actRows.Err()
}

func statusTimestampColumn(status string) string {
	switch status {
	case "contacted":
		return "contacted_at"
	case "invited":
		return "invited_at"
	case "confirmed":
		return "confirmed_at"
	}
	return ""
}
