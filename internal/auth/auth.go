package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// HashPassword hashes a plaintext password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a stored bcrypt hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Session is the authenticated state carried by the session cookie. CartKey
// identifies the server-side cart belonging to this session.
type Session struct {
	AccountID int64
	Username  string
	Admin     bool
	CartKey   string
}

// Sessions issues and parses signed session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl}
}

func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Issue signs a new session token. A fresh cart key is minted per session.
func (s *Sessions) Issue(accountID int64, username string, admin bool) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   accountID,
		"name":  username,
		"admin": admin,
		"cart":  uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// Parse validates a session token and returns the session it carries.
func (s *Sessions) Parse(tokenString string) (Session, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Session{}, ErrInvalidToken
	}

	sub, ok := claims["sub"].(float64)
	if !ok {
		return Session{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	admin, _ := claims["admin"].(bool)
	cart, _ := claims["cart"].(string)

	return Session{
		AccountID: int64(sub),
		Username:  name,
		Admin:     admin,
		CartKey:   cart,
	}, nil
}

// renderTokenTTL bounds the window in which the PDF renderer may fetch the
// report page.
const renderTokenTTL = 2 * time.Minute

// IssueRenderToken signs a short-lived token scoped to one report render.
func (s *Sessions) IssueRenderToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"scope": "render",
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(renderTokenTTL).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign render token: %w", err)
	}
	return token, nil
}

// ParseRenderToken validates a render token.
func (s *Sessions) ParseRenderToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return ErrInvalidToken
	}
	if scope, _ := claims["scope"].(string); scope != "render" {
		return fmt.Errorf("%w: wrong scope", ErrInvalidToken)
	}
	return nil
}
