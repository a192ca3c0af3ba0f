// Package session holds the per-visitor chat state and an in-memory store of
// live sessions.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/esnunes/codewizard/internal/models"
)

// MinNameLength is the minimum trimmed length of a display name.
const MinNameLength = 2

var (
	ErrNameTooShort  = errors.New("name must be at least 2 characters")
	ErrAlreadyActive = errors.New("session already has a name")
)

type State int

const (
	Unauthenticated State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "unauthenticated"
}

type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashWarning FlashKind = "warning"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot notice shown on the next render.
type Flash struct {
	Kind FlashKind
	Text string
}

// Session is the state of one visitor. It is not safe for concurrent use;
// callers serialize access with Store.Lock.
type Session struct {
	ID        string
	UserName  string
	StartedAt time.Time
	Mode      models.Mode

	QuestionsAsked int
	CodeAnalyses   int

	// Messages is what the chat view renders; History feeds prompt context.
	// Both receive every entry.
	Messages      []models.Message
	History       []models.Message
	Code          *models.CodeSubmission
	CodeSubmitted bool

	// Draft keeps form input across a failed submission so it can be
	// re-rendered.
	Draft string

	// ConfigError, once set, blocks the main view until the process is
	// reconfigured.
	ConfigError string

	flashes []Flash
}

func New(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		StartedAt: now,
		Mode:      models.ModeCode,
	}
}

func (s *Session) State() State {
	if s.UserName == "" {
		return Unauthenticated
	}
	return Active
}

// SetName records the display name, moving the session to Active.
func (s *Session) SetName(name string) error {
	if s.State() == Active {
		return ErrAlreadyActive
	}
	name = strings.TrimSpace(name)
	if len([]rune(name)) < MinNameLength {
		return ErrNameTooShort
	}
	s.UserName = name
	return nil
}

// Reset clears the conversation and the active code. Identity, mode, and
// counters are kept.
func (s *Session) Reset() {
	s.Messages = nil
	s.History = nil
	s.Code = nil
	s.CodeSubmitted = false
	s.Draft = ""
}

// End clears everything, returning the session to Unauthenticated.
func (s *Session) End(now time.Time) {
	s.Reset()
	s.UserName = ""
	s.Mode = models.ModeCode
	s.QuestionsAsked = 0
	s.CodeAnalyses = 0
	s.StartedAt = now
	s.ConfigError = ""
	s.flashes = nil
}

// Append adds entries to both the rendered chat and the prompt history.
func (s *Session) Append(msgs ...models.Message) {
	s.Messages = append(s.Messages, msgs...)
	s.History = append(s.History, msgs...)
}

// RecentContext returns a copy of the last n history entries, oldest first.
func (s *Session) RecentContext(n int) []models.Message {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	start := max(len(s.History)-n, 0)
	out := make([]models.Message, len(s.History)-start)
	copy(out, s.History[start:])
	return out
}

func (s *Session) Stats(now time.Time) models.Stats {
	return models.Stats{
		UserName:        s.UserName,
		DurationMinutes: int(now.Sub(s.StartedAt).Minutes()),
		QuestionsAsked:  s.QuestionsAsked,
		CodeAnalyses:    s.CodeAnalyses,
		SessionStart:    s.StartedAt,
		HistoryLength:   len(s.History),
	}
}

func (s *Session) AddFlash(kind FlashKind, text string) {
	s.flashes = append(s.flashes, Flash{Kind: kind, Text: text})
}

// TakeFlashes returns pending notices and clears them.
func (s *Session) TakeFlashes() []Flash {
	f := s.flashes
	s.flashes = nil
	return f
}
