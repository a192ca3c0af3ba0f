// Package wizard implements the user actions of a code-explanation chat:
// logging in, submitting code, asking questions, and clearing or ending the
// session.
package wizard

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/esnunes/codewizard/internal/models"
	"github.com/esnunes/codewizard/internal/session"
)

// AnalyzeRequest is the chat entry recorded for every code submission.
const AnalyzeRequest = "Please analyze this code."

// Event actions written to the event log.
const (
	EventSessionStarted   = "session_started"
	EventLogin            = "login"
	EventLoginRejected    = "login_rejected"
	EventCodeSubmitted    = "code_submitted"
	EventCodeRejected     = "code_rejected"
	EventAnalysis         = "analysis_completed"
	EventQuestion         = "question_asked"
	EventAnswer           = "answer_completed"
	EventPipelineFailed   = "pipeline_failed"
	EventModeChanged      = "mode_changed"
	EventNewCodeRequested = "new_code_requested"
	EventChatCleared      = "chat_cleared"
	EventSessionEnded     = "session_ended"
	EventSessionExpired   = "session_expired"
)

// EventSink stores observability events. Nothing reads them back during a
// session.
type EventSink interface {
	AppendEvent(e models.Event) (*models.Event, error)
}

type Wizard struct {
	pipeline      *Pipeline
	events        EventSink
	logger        *zap.Logger
	contextWindow int
	now           func() time.Time
}

// New builds a Wizard. events may be nil.
func New(pipeline *Pipeline, events EventSink, contextWindow int, logger *zap.Logger) *Wizard {
	return &Wizard{
		pipeline:      pipeline,
		events:        events,
		logger:        logger,
		contextWindow: contextWindow,
		now:           time.Now,
	}
}

// Start records the creation of s.
func (w *Wizard) Start(s *session.Session) {
	w.logger.Info("new session started", zap.String("session", s.ID), zap.Time("started_at", s.StartedAt))
	w.record(s, EventSessionStarted, "")
}

// Login moves s from Unauthenticated to Active.
func (w *Wizard) Login(s *session.Session, name string) error {
	if err := s.SetName(name); err != nil {
		w.logger.Warn("invalid login attempt", zap.String("session", s.ID), zap.Error(err))
		w.record(s, EventLoginRejected, name)
		if errors.Is(err, session.ErrAlreadyActive) {
			return validation("name", "You are already signed in.", err)
		}
		return validation("name", "Please enter a valid name (at least 2 characters).", err)
	}
	w.logger.Info("user logged in", zap.String("session", s.ID), zap.String("user", s.UserName))
	w.record(s, EventLogin, s.UserName)
	return nil
}

// SubmitCode runs the initial analysis of code. On success the code becomes
// the active submission and two chat entries are appended. On failure s is
// unchanged.
func (w *Wizard) SubmitCode(ctx context.Context, s *session.Session, code string) (string, error) {
	if err := requireActive(s); err != nil {
		return "", err
	}
	if strings.TrimSpace(code) == "" {
		w.logger.Warn("empty code submission", zap.String("user", s.UserName))
		w.record(s, EventCodeRejected, "")
		return "", validation("code", "Please enter some code before analysis.", nil)
	}

	w.logger.Info("code submission", zap.String("user", s.UserName), zap.Int("code_len", len(code)))
	w.record(s, EventCodeSubmitted, code)

	explanation, err := w.pipeline.AnalyzeInitial(ctx, code)
	if err != nil {
		w.failed(s, err)
		return "", err
	}

	s.Code = &models.CodeSubmission{Code: code, SubmittedAt: w.now()}
	s.CodeSubmitted = true
	s.Append(
		models.Message{Role: models.RoleUser, Content: AnalyzeRequest},
		models.Message{Role: models.RoleAssistant, Content: explanation},
	)
	s.CodeAnalyses++

	w.logger.Info("code analysis completed", zap.String("user", s.UserName), zap.Int("analyses", s.CodeAnalyses))
	w.record(s, EventAnalysis, explanation)
	return explanation, nil
}

// Ask answers a chat question. In code mode the active submission and the
// last contextWindow history entries are part of the prompt; in general
// mode neither is. On failure s is unchanged.
func (w *Wizard) Ask(ctx context.Context, s *session.Session, question string) (string, error) {
	if err := requireActive(s); err != nil {
		return "", err
	}
	if strings.TrimSpace(question) == "" {
		return "", validation("question", "Please type a question first.", nil)
	}
	if s.Mode == models.ModeCode && s.Code == nil {
		return "", validation("question", "Submit some code before asking code-specific questions.", nil)
	}

	w.logger.Info("new question received", zap.String("user", s.UserName), zap.String("mode", string(s.Mode)))
	w.record(s, EventQuestion, question)

	var (
		answer string
		err    error
	)
	if s.Mode == models.ModeGeneral {
		answer, err = w.pipeline.AnswerGeneral(ctx, question)
	} else {
		answer, err = w.pipeline.AnalyzeFollowUp(ctx, s.Code.Code, question, s.RecentContext(w.contextWindow))
	}
	if err != nil {
		w.failed(s, err)
		return "", err
	}

	s.Append(
		models.Message{Role: models.RoleUser, Content: question},
		models.Message{Role: models.RoleAssistant, Content: answer},
	)
	s.QuestionsAsked++

	w.logger.Info("generated response", zap.String("user", s.UserName), zap.Int("questions", s.QuestionsAsked))
	w.record(s, EventAnswer, answer)
	return answer, nil
}

// SetMode switches between code-specific and general questions.
func (w *Wizard) SetMode(s *session.Session, mode models.Mode) error {
	if err := requireActive(s); err != nil {
		return err
	}
	if mode != models.ModeCode && mode != models.ModeGeneral {
		return validation("mode", "Unknown question mode.", nil)
	}
	if s.Mode == mode {
		return nil
	}
	s.Mode = mode
	w.logger.Info("context mode changed", zap.String("user", s.UserName), zap.String("mode", mode.Label()))
	w.record(s, EventModeChanged, string(mode))
	return nil
}

// RequestNewCode reopens the code form. The chat and the previous code are
// kept until new code is analyzed.
func (w *Wizard) RequestNewCode(s *session.Session) error {
	if err := requireActive(s); err != nil {
		return err
	}
	s.CodeSubmitted = false
	w.logger.Info("new code requested", zap.String("user", s.UserName))
	w.record(s, EventNewCodeRequested, "")
	return nil
}

// Clear resets the conversation and the active code, keeping identity. It
// reports whether there was anything to clear.
func (w *Wizard) Clear(s *session.Session) (bool, error) {
	if err := requireActive(s); err != nil {
		return false, err
	}
	if len(s.Messages) == 0 && s.Code == nil {
		return false, nil
	}
	s.Reset()
	w.logger.Info("chat history cleared", zap.String("user", s.UserName))
	w.record(s, EventChatCleared, "")
	return true, nil
}

// End discards identity and conversation.
func (w *Wizard) End(s *session.Session) {
	w.logger.Info("session ended", zap.String("session", s.ID), zap.String("user", s.UserName))
	w.record(s, EventSessionEnded, "")
	s.End(w.now())
}

// Expire records that the store dropped an idle session. It runs outside
// the session lock, so only the immutable ID is read.
func (w *Wizard) Expire(s *session.Session) {
	w.append(models.Event{SessionID: s.ID, Actor: "system", Action: EventSessionExpired})
}

// Stats returns the session summary and logs it.
func (w *Wizard) Stats(s *session.Session) models.Stats {
	st := s.Stats(w.now())
	w.logger.Debug("session statistics",
		zap.String("user", st.UserName),
		zap.Int("duration_minutes", st.DurationMinutes),
		zap.Int("questions_asked", st.QuestionsAsked),
		zap.Int("code_analyses", st.CodeAnalyses),
		zap.Time("session_start", st.SessionStart),
		zap.Int("chat_history_length", st.HistoryLength),
	)
	return st
}

func (w *Wizard) failed(s *session.Session, err error) {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		s.ConfigError = cfgErr.Error()
	}
	w.record(s, EventPipelineFailed, err.Error())
}

func (w *Wizard) record(s *session.Session, action, payload string) {
	actor := s.UserName
	if actor == "" {
		actor = "system"
	}
	w.append(models.Event{SessionID: s.ID, Actor: actor, Action: action, Payload: payload})
}

func (w *Wizard) append(e models.Event) {
	if w.events == nil {
		return
	}
	e.CreatedAt = w.now()
	if _, err := w.events.AppendEvent(e); err != nil {
		w.logger.Warn("recording event", zap.String("action", e.Action), zap.Error(err))
	}
}

func requireActive(s *session.Session) error {
	if s.State() != session.Active {
		return validation("name", "Please tell us your name first.", nil)
	}
	return nil
}
