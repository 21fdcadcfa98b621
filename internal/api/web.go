package api

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/kalambet/shopper/internal/conversation"
	"github.com/kalambet/shopper/internal/shopping"
)

// SessionCookie names the cookie that binds a browser to its session.
const SessionCookie = "shopper_session"

// refreshSeconds is how often the page reloads while a search is running.
const refreshSeconds = 2

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))

type turnView struct {
	User   bool
	Text   string
	Result shopping.SearchResult
}

type pageData struct {
	Empty          bool
	Awaiting       bool
	RefreshSeconds int
	Turns          []turnView
}

func newPageData(snap conversation.Snapshot) pageData {
	data := pageData{
		Empty:          len(snap.Turns) == 0,
		Awaiting:       snap.State == conversation.StateAwaiting,
		RefreshSeconds: refreshSeconds,
		Turns:          make([]turnView, 0, len(snap.Turns)),
	}
	for _, t := range snap.Turns {
		if text, ok := t.Text(); ok {
			data.Turns = append(data.Turns, turnView{User: true, Text: text})
			continue
		}
		if res, ok := t.Result(); ok {
			data.Turns = append(data.Turns, turnView{Result: res})
		}
	}
	return data
}

// sessionFor returns the session bound to the request cookie, creating one
// and setting the cookie when needed.
func sessionFor(w http.ResponseWriter, r *http.Request, sessions *conversation.Registry) *conversation.Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created := sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID(),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

func handleIndex(sessions *conversation.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFor(w, r, sessions)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := templates.ExecuteTemplate(w, "index", newPageData(sess.Snapshot())); err != nil {
			slog.Error("rendering conversation page", "session", sess.ID(), "error", err)
		}
	}
}

func handleSubmit(sessions *conversation.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}

		sess := sessionFor(w, r, sessions)
		err := sess.Submit(r.Context(), r.PostForm.Get("q"))
		switch {
		case err == nil:
		case errors.Is(err, conversation.ErrEmptyInput), errors.Is(err, conversation.ErrBusy):
			slog.Debug("submission ignored", "session", sess.ID(), "reason", err)
		default:
			slog.Warn("submission rejected", "session", sess.ID(), "error", err)
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
