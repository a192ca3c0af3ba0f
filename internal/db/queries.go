package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/esnunes/codewizard/internal/models"
)

// timeLayout matches the created_at column default: second precision plus
// milliseconds, UTC.
const timeLayout = "2006-01-02 15:04:05.000"

type Queries struct {
	db *sql.DB
}

func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// AppendEvent stores e. A zero CreatedAt is filled by the database.
func (q *Queries) AppendEvent(e models.Event) (*models.Event, error) {
	var (
		res sql.Result
		err error
	)
	if e.CreatedAt.IsZero() {
		res, err = q.db.Exec(
			`INSERT INTO events (session_id, actor, action, payload) VALUES (?, ?, ?, ?)`,
			e.SessionID, e.Actor, e.Action, e.Payload,
		)
	} else {
		res, err = q.db.Exec(
			`INSERT INTO events (session_id, actor, action, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
			e.SessionID, e.Actor, e.Action, e.Payload, e.CreatedAt.UTC().Format(timeLayout),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("appending event: %w", err)
	}
	id, _ := res.LastInsertId()
	return q.GetEvent(id)
}

func (q *Queries) GetEvent(id int64) (*models.Event, error) {
	e := &models.Event{}
	var createdAt string
	err := q.db.QueryRow(
		`SELECT id, session_id, actor, action, payload, created_at FROM events WHERE id = ?`, id,
	).Scan(&e.ID, &e.SessionID, &e.Actor, &e.Action, &e.Payload, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return e, nil
}

// ListEvents returns the most recent events, oldest first. An empty
// sessionID lists all sessions; limit <= 0 means no limit.
func (q *Queries) ListEvents(sessionID string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := q.db.Query(
		`SELECT id, session_id, actor, action, payload, created_at FROM (
		     SELECT * FROM events
		     WHERE ? = '' OR session_id = ?
		     ORDER BY id DESC
		     LIMIT ?
		 ) ORDER BY id ASC`,
		sessionID, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var results []models.Event
	for rows.Next() {
		var e models.Event
		var createdAt string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Actor, &e.Action, &e.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		results = append(results, e)
	}
	return results, rows.Err()
}
