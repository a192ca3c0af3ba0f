package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/esnunes/codewizard/internal/models"
	"github.com/esnunes/codewizard/internal/session"
	"github.com/esnunes/codewizard/internal/wizard"
)

//go:embed templates
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

const cookieName = "codewizard_session"

type Server struct {
	wizard  *wizard.Wizard
	store   *session.Store
	logger  *zap.Logger
	pages   map[string]*template.Template
	handler http.Handler
	httpSrv *http.Server
	ln      net.Listener
	addr    string
}

var funcMap = template.FuncMap{
	"isUser":    func(r models.Role) bool { return r == models.RoleUser },
	"isGeneral": func(m models.Mode) bool { return m == models.ModeGeneral },
}

func New(w *wizard.Wizard, store *session.Store, logger *zap.Logger) (*Server, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		wizard: w,
		store:  store,
		logger: logger,
		pages:  pages,
	}

	mux := http.NewServeMux()

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("getting static subfs: %w", err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /code", s.handleSubmitCode)
	mux.HandleFunc("POST /code/new", s.handleNewCode)
	mux.HandleFunc("POST /messages", s.handleAsk)
	mux.HandleFunc("POST /mode", s.handleMode)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.HandleFunc("POST /end", s.handleEnd)

	s.handler = s.recoverPanics(mux)
	s.httpSrv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// parsePages builds a template for each page by combining layout.html with the page template.
func parsePages() (map[string]*template.Template, error) {
	tmplFS, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("getting templates subfs: %w", err)
	}

	layoutBytes, err := fs.ReadFile(tmplFS, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout: %w", err)
	}

	pageNames := []string{
		"welcome.html",
		"chat.html",
		"config_error.html",
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		pageBytes, err := fs.ReadFile(tmplFS, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		tmpl, err := template.New("layout.html").Funcs(funcMap).Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", name, err)
		}

		if _, err := tmpl.New(name).Parse(string(pageBytes)); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}

		pages[name] = tmpl
	}
	return pages, nil
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listen binds the server to addr. Call Serve to start handling requests.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	s.ln = ln
	s.addr = ln.Addr().String()
	return nil
}

// Serve starts handling HTTP requests. Blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("code wizard running", zap.String("url", "http://"+s.addr))

	if err := s.httpSrv.Serve(s.ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	s.logger.Info("shutting down")
	return nil
}

func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("template not found", zap.String("template", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		s.logger.Error("render error", zap.String("template", name), zap.Error(err))
	}
}

// recoverPanics turns a panicking handler into a generic failure page
// instead of a dropped connection.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.logger.Error("unhandled panic",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", v),
					zap.Stack("stack"),
				)
				http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// acquire returns the caller's session, locked, creating one (and setting
// the cookie) when the request carries no live session. The returned
// function releases the lock.
func (s *Server) acquire(w http.ResponseWriter, r *http.Request) (*session.Session, func()) {
	if c, err := r.Cookie(cookieName); err == nil {
		if _, ok := s.store.Get(c.Value); ok {
			mu := s.store.Lock(c.Value)
			// re-check: the session may have ended while we waited
			if sess, ok := s.store.Get(c.Value); ok {
				return sess, mu.Unlock
			}
			mu.Unlock()
		}
	}

	sess := s.store.Create()
	mu := s.store.Lock(sess.ID)
	s.wizard.Start(sess)
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, mu.Unlock
}
