package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	CookieName = "composer_session"
	sessionTTL = 8 * time.Hour
	issuer     = "exercise-composer"
)

type Claims struct {
	Sub      string `json:"sub"`
	Role     string `json:"role"` // instructor | student | admin
	APIToken string `json:"api,omitempty"`
	jwt.RegisteredClaims
}

// SessionService issues and verifies HS256 session tokens.
type SessionService struct {
	hmac   []byte
	secure bool
	now    func() time.Time
}

func NewSessionService(secret string, secureCookies bool) *SessionService {
	return &SessionService{hmac: []byte(secret), secure: secureCookies, now: time.Now}
}

func (s *SessionService) Issue(sub, role, apiToken string) (string, error) {
	if sub == "" || role == "" {
		return "", errors.New("auth: subject and role required")
	}
	now := s.now()
	claims := &Claims{
		Sub:      sub,
		Role:     role,
		APIToken: apiToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.hmac)
}

func (s *SessionService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.Sub == "" {
		return nil, errors.New("auth: invalid session")
	}
	return c, nil
}

func (s *SessionService) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  s.now().Add(sessionTTL),
	})
}

func (s *SessionService) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
