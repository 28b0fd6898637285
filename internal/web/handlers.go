package web

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"oshaberi/internal/chat"
	"oshaberi/internal/llm"
	"oshaberi/internal/style"
)

const sessionCookie = "oshaberi_session"

// session resolves the caller's session, minting a cookie when the request
// carries none or one that is not a session id.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *chat.Session {
	id, ok := sessionID(r)
	if !ok {
		id = chat.NewID()
		http.SetCookie(w, newSessionCookie(id))
	}
	return s.store.Get(id)
}

func sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

func newSessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

type pageMessage struct {
	Role string
	Text string
	HTML template.HTML
}

type pageStyle struct {
	Key      string
	Title    string
	Selected bool
}

type pageData struct {
	Title        string
	Placeholder  string
	Styles       []pageStyle
	Temperature  float64
	Min, Max     float64
	ConfirmReset bool
	Messages     []pageMessage
}

func (s *Server) pageData(snap chat.Snapshot) pageData {
	data := pageData{
		Title:        snap.Style.Title,
		Placeholder:  snap.Style.Placeholder,
		Temperature:  snap.Temperature,
		Min:          chat.MinTemperature,
		Max:          chat.MaxTemperature,
		ConfirmReset: snap.ConfirmReset,
	}
	if data.Title == "" {
		data.Title = snap.Style.Key
	}
	for _, st := range snap.Styles {
		title := st.Title
		if title == "" {
			title = st.Key
		}
		data.Styles = append(data.Styles, pageStyle{Key: st.Key, Title: title, Selected: st.Key == snap.Style.Key})
	}
	for _, m := range snap.Messages {
		pm := pageMessage{Role: string(m.Role), Text: m.Content}
		if m.Role == llm.RoleAssistant {
			pm.HTML = s.markdown.Render(m.Content)
		}
		data.Messages = append(data.Messages, pm)
	}
	return data
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, s.pageData(sess.Snapshot())); err != nil {
		s.logger.Error("render page", "session", sess.ID, "error", err)
	}
}

func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if err := sess.SelectStyle(r.FormValue("style")); err != nil {
		if errors.Is(err, style.ErrStyleNotFound) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.backToPage(w, r)
}

func (s *Server) handleTemperature(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	t, err := strconv.ParseFloat(r.FormValue("temperature"), 64)
	if err != nil {
		http.Error(w, "temperature must be a number", http.StatusBadRequest)
		return
	}
	if err := sess.SetTemperature(t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.backToPage(w, r)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.session(w, r).RequestReset()
	s.backToPage(w, r)
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	s.session(w, r).ConfirmReset()
	s.backToPage(w, r)
}

func (s *Server) handleResetCancel(w http.ResponseWriter, r *http.Request) {
	s.session(w, r).CancelReset()
	s.backToPage(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) backToPage(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
