package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const sessionName = "annotinder_admin"

// SessionStore backs the admin dashboard's browser session (cookie-based
// login so a researcher doesn't re-paste a bearer token on every page
// load). Coders authenticate with bearer/job tokens instead; sessions are
// only used for the admin-facing boundary.
type SessionStore struct {
	store *sessions.CookieStore
}

func NewSessionStore(secret string) *SessionStore {
	return &SessionStore{store: sessions.NewCookieStore([]byte(secret))}
}

func (s *SessionStore) SetUser(w http.ResponseWriter, r *http.Request, userID int64) error {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return err
	}
	session.Values["user_id"] = userID
	return session.Save(r, w)
}

func (s *SessionStore) UserID(r *http.Request) (int64, bool) {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return 0, false
	}
	id, ok := session.Values["user_id"].(int64)
	return id, ok
}

func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return err
	}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
