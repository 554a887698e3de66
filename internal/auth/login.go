package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/matuc/lti-exercise-composer/internal/config"
	"github.com/matuc/lti-exercise-composer/internal/rbac"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLocalAuthDisabled  = errors.New("local login is disabled")
)

type LocalUser struct {
	Username string
	Role     string
	PassHash string // bcrypt
}

// Authenticator checks the dev/offline accounts configured in the environment.
type Authenticator struct {
	enabled    bool
	allowPlain bool // offline: empty hash means password == username
	users      map[string]LocalUser
}

func NewAuthenticator(cfg config.Config) *Authenticator {
	a := &Authenticator{
		enabled:    cfg.EnableLocalAuth,
		allowPlain: cfg.Mode == config.ModeOffline,
		users:      map[string]LocalUser{},
	}
	if cfg.InstructorUser != "" {
		a.users[cfg.InstructorUser] = LocalUser{Username: cfg.InstructorUser, Role: rbac.RoleInstructor, PassHash: cfg.InstructorPassHash}
	}
	if cfg.StudentUser != "" {
		a.users[cfg.StudentUser] = LocalUser{Username: cfg.StudentUser, Role: rbac.RoleStudent, PassHash: cfg.StudentPassHash}
	}
	return a
}

func (a *Authenticator) Enabled() bool { return a.enabled }

func (a *Authenticator) Authenticate(username, password string) (LocalUser, error) {
	if !a.enabled {
		return LocalUser{}, ErrLocalAuthDisabled
	}
	u, ok := a.users[strings.TrimSpace(username)]
	if !ok || password == "" {
		return LocalUser{}, ErrInvalidCredentials
	}
	if u.PassHash == "" {
		if a.allowPlain && subtle.ConstantTimeCompare([]byte(password), []byte(u.Username)) == 1 {
			return u, nil
		}
		return LocalUser{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte(password)); err != nil {
		return LocalUser{}, ErrInvalidCredentials
	}
	return u, nil
}

// HashPassword produces a value for INSTRUCTOR_PASS_HASH / STUDENT_PASS_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}
