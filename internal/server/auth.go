package server

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenExpiry      = 12 * time.Hour
	tokenSubject     = "controller"
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
)

var (
	ErrAuthDisabled = errors.New("control is open, no login needed")
	ErrBadPassword  = errors.New("invalid password")
	ErrRateLimited  = errors.New("too many login attempts, try again later")
	ErrInvalidToken = errors.New("invalid token")
)

// Auth gates player control behind an operator password. With no hash
// configured every client may control the player.
type Auth struct {
	passHash  []byte
	jwtSecret []byte

	// Rate limiting for login attempts (IP -> attempts)
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth builds the gate. An empty secret gets a random per-process one,
// so tokens do not survive a restart.
func NewAuth(passwordHash, secret string) (*Auth, error) {
	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("operator password hash: %w", err)
		}
	}
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating JWT secret: %w", err)
		}
	}
	return &Auth{
		passHash:  []byte(passwordHash),
		jwtSecret: key,
		rateMap:   make(map[string]*rateEntry),
	}, nil
}

// HashPassword produces a hash suitable for server.passwordHash
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Required reports whether control needs a token
func (a *Auth) Required() bool {
	return len(a.passHash) > 0
}

// Login checks the operator password and returns a token
func (a *Auth) Login(password, ip string) (string, error) {
	if !a.Required() {
		return "", ErrAuthDisabled
	}
	if !a.checkRate(ip) {
		return "", ErrRateLimited
	}
	if err := bcrypt.CompareHashAndPassword(a.passHash, []byte(password)); err != nil {
		return "", ErrBadPassword
	}
	return a.IssueToken()
}

// IssueToken signs a fresh controller token
func (a *Auth) IssueToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": tokenSubject,
		"exp": now.Add(tokenExpiry).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateToken checks signature, expiry and subject
func (a *Auth) ValidateToken(tokenStr string) error {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub != tokenSubject {
		return ErrInvalidToken
	}
	return nil
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}
