// Package session provides a server-side gorilla/sessions Store.
//
// The cookie only carries the session ID, signed and encrypted with
// securecookie. Session values live in the sessions table, encoded with the
// same codecs, so tampering with either half is detected.
//
// The flow mirrors gorilla's FilesystemStore:
//
//	Get  → request registry → New (decode cookie → load row)
//	Save → MaxAge <= 0 ? delete row + expire cookie : write row + set cookie
package session

import (
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/hkdf"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/repository"
)

// DefaultName is the cookie name used by the application.
const DefaultName = "todo_session"

// Store persists sessions through a repository.SessionRepository.
type Store struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options
	repo    repository.SessionRepository
}

var _ sessions.Store = (*Store)(nil)

// Options configure cookie attributes for new sessions.
type Options struct {
	MaxAge time.Duration
	Secure bool
}

// NewStore derives the cookie keys from secret and returns a Store.
func NewStore(repo repository.SessionRepository, secret []byte, opts Options) (*Store, error) {
	if len(secret) == 0 {
		return nil, errors.New("session: secret must not be empty")
	}
	hashKey, blockKey, err := DeriveKeys(secret)
	if err != nil {
		return nil, err
	}

	maxAge := int(opts.MaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = 86400
	}

	codecs := securecookie.CodecsFromPairs(hashKey, blockKey)
	for _, c := range codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(maxAge)
			// Values are stored in the database, not the cookie, so the
			// 4096-byte cookie limit does not apply.
			sc.MaxLength(0)
		}
	}

	return &Store{
		Codecs: codecs,
		Options: &sessions.Options{
			Path:     "/",
			MaxAge:   maxAge,
			HttpOnly: true,
			Secure:   opts.Secure,
			SameSite: http.SameSiteLaxMode,
		},
		repo: repo,
	}, nil
}

// DeriveKeys expands one application secret into a 64-byte HMAC key and a
// 32-byte AES key with HKDF-SHA256, using distinct info strings.
func DeriveKeys(secret []byte) (hashKey, blockKey []byte, err error) {
	hashKey = make([]byte, 64)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("todo-app session hash")), hashKey); err != nil {
		return nil, nil, fmt.Errorf("session: deriving hash key: %w", err)
	}
	blockKey = make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("todo-app session block")), blockKey); err != nil {
		return nil, nil, fmt.Errorf("session: deriving block key: %w", err)
	}
	return hashKey, blockKey, nil
}

// Get returns the session for name, reusing any instance already loaded for
// this request.
func (s *Store) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns the stored session named by the request cookie, or a fresh one.
//
// An unknown, expired or undecodable cookie yields a fresh session and no
// error: the visitor is anonymous, which is what the caller expects anyway.
// Only storage failures are returned.
func (s *Store) New(r *http.Request, name string) (*sessions.Session, error) {
	sess := sessions.NewSession(s, name)
	opts := *s.Options
	sess.Options = &opts
	sess.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}

	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.Codecs...); err != nil {
		return sess, nil
	}

	data, err := s.repo.LoadSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return sess, nil
		}
		return sess, fmt.Errorf("session: loading: %w", err)
	}

	if err := securecookie.DecodeMulti(name, data, &sess.Values, s.Codecs...); err != nil {
		return sess, nil
	}

	sess.ID = id
	sess.IsNew = false
	return sess, nil
}

// Save writes the session row and the cookie. A non-positive MaxAge deletes
// the row and expires the cookie.
func (s *Store) Save(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	if sess.Options == nil {
		opts := *s.Options
		sess.Options = &opts
	}

	if sess.Options.MaxAge <= 0 {
		if sess.ID != "" {
			if err := s.repo.DeleteSession(r.Context(), sess.ID); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	if sess.ID == "" {
		sess.ID = strings.TrimRight(
			base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
	}

	data, err := securecookie.EncodeMulti(sess.Name(), sess.Values, s.Codecs...)
	if err != nil {
		return fmt.Errorf("session: encoding values: %w", err)
	}
	expiresAt := time.Now().Add(time.Duration(sess.Options.MaxAge) * time.Second)
	if err := s.repo.SaveSession(r.Context(), sess.ID, data, expiresAt); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.Codecs...)
	if err != nil {
		return fmt.Errorf("session: encoding cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}
