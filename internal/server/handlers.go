package server

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/esnunes/codewizard/internal/models"
	"github.com/esnunes/codewizard/internal/session"
	"github.com/esnunes/codewizard/internal/wizard"
)

type welcomeData struct {
	Flashes []session.Flash
}

type chatData struct {
	Flashes       []session.Flash
	Stats         models.Stats
	Messages      []models.Message
	Code          *models.CodeSubmission
	CodeSubmitted bool
	Draft         string
	Mode          models.Mode
}

type configErrorData struct {
	Flashes []session.Flash
	Message string
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "ok sessions=%d\n", s.store.Len())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, unlock := s.acquire(w, r)
	defer unlock()

	if sess.State() == session.Unauthenticated {
		s.renderPage(w, http.StatusOK, "welcome.html", welcomeData{Flashes: sess.TakeFlashes()})
		return
	}

	if sess.ConfigError != "" {
		s.renderPage(w, http.StatusServiceUnavailable, "config_error.html", configErrorData{Message: sess.ConfigError})
		return
	}

	s.renderPage(w, http.StatusOK, "chat.html", chatData{
		Flashes:       sess.TakeFlashes(),
		Stats:         s.wizard.Stats(sess),
		Messages:      sess.Messages,
		Code:          sess.Code,
		CodeSubmitted: sess.CodeSubmitted,
		Draft:         sess.Draft,
		Mode:          sess.Mode,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	sess, unlock := s.acquire(w, r)
	defer unlock()

	if err := s.wizard.Login(sess, r.FormValue("name")); err != nil {
		s.flashError(sess, err)
	} else {
		sess.AddFlash(session.FlashSuccess, fmt.Sprintf("Welcome aboard, %s! 🌟", sess.UserName))
	}
	redirectHome(w, r)
}

func (s *Server) handleSubmitCode(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	sess, unlock := s.acquire(w, r)
	defer unlock()

	code := r.FormValue("code")
	if _, err := s.wizard.SubmitCode(r.Context(), sess, code); err != nil {
		sess.Draft = code
		s.flashError(sess, err)
	} else {
		sess.Draft = ""
	}
	redirectHome(w, r)
}

func (s *Server) handleNewCode(w http.ResponseWriter, r *http.Request) {
	sess, unlock := s.acquire(w, r)
	defer unlock()

	if err := s.wizard.RequestNewCode(sess); err != nil {
		s.flashError(sess, err)
	}
	redirectHome(w, r)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	sess, unlock := s.acquire(w, r)
	defer unlock()

	if _, err := s.wizard.Ask(r.Context(), sess, r.FormValue("question")); err != nil {
		s.flashError(sess, err)
	}
	redirectHome(w, r)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	sess, unlock := s.acquire(w, r)
	defer unlock()

	mode := models.ModeCode
	if r.FormValue("mode") == string(models.ModeGeneral) {
		mode = models.ModeGeneral
	}
	if err := s.wizard.SetMode(sess, mode); err != nil {
		s.flashError(sess, err)
	}
	redirectHome(w, r)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sess, unlock := s.acquire(w, r)
	defer unlock()

	cleared, err := s.wizard.Clear(sess)
	switch {
	case err != nil:
		s.flashError(sess, err)
	case cleared:
		sess.AddFlash(session.FlashSuccess, "✨ Chat cleared!")
	}
	redirectHome(w, r)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	sess, unlock := s.acquire(w, r)
	defer unlock()

	s.wizard.End(sess)
	// waiters on this lock re-check the store and get a fresh session
	s.store.Delete(sess.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	redirectHome(w, r)
}

// flashError turns an action error into a notice for the next render.
// Configuration errors need no notice: the session is already blocked.
func (s *Server) flashError(sess *session.Session, err error) {
	var (
		vErr *wizard.ValidationError
		uErr *wizard.UpstreamError
	)
	switch {
	case errors.As(err, &vErr):
		sess.AddFlash(session.FlashWarning, "⚠️ "+vErr.Message)
	case wizard.IsConfiguration(err):
	case errors.As(err, &uErr):
		sess.AddFlash(session.FlashError, fmt.Sprintf("Error in analysis: %v", uErr.Err))
	default:
		s.logger.Error("unexpected action error", zap.String("session", sess.ID), zap.Error(err))
		sess.AddFlash(session.FlashError, "Something went wrong. Please try again.")
	}
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
