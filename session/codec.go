package session

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec converts a Session to and from a URL-safe cookie value.
type Codec interface {
	Encode(s *Session) (string, error)
	Decode(value string) (*Session, error)
}

type wireSession struct {
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	SessionID string `json:"sessionId"`
	CreatedAt int64  `json:"createdAt"`
}

// PlainCodec stores the session as unpadded base64url JSON. The value is readable and
// forgeable by the client; use SignedCodec when the cookie crosses an untrusted boundary.
type PlainCodec struct{}

// NewPlainCodec returns the unsigned cookie codec.
func NewPlainCodec() PlainCodec {
	return PlainCodec{}
}

func (PlainCodec) Encode(s *Session) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	raw, err := json.Marshal(wireSession{
		UserID:    s.UserID,
		Role:      string(s.Role),
		SessionID: s.SessionID,
		CreatedAt: s.CreatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func (PlainCodec) Decode(value string) (*Session, error) {
	value = strings.TrimRight(strings.TrimSpace(value), "=")
	if value == "" {
		return nil, ErrMalformedSession
	}

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrMalformedSession
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrMalformedSession
	}

	var w wireSession
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, ErrMalformedSession
	}

	return fromWire(w)
}

func fromWire(w wireSession) (*Session, error) {
	role, ok := ParseRole(w.Role)
	if !ok {
		return nil, ErrInvalidSession
	}

	s := &Session{
		UserID:    w.UserID,
		Role:      role,
		SessionID: w.SessionID,
		CreatedAt: w.CreatedAt,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

type sessionClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// SignedCodec carries the session as an HS256 JWT so that role and identity cannot be
// altered client-side.
type SignedCodec struct {
	key    []byte
	issuer string
	parser *jwt.Parser
}

// NewSignedCodec builds a signing codec. The key must be at least 32 bytes.
func NewSignedCodec(key []byte, issuer string) (*SignedCodec, error) {
	if len(key) < 32 {
		return nil, errors.New("session signing key must be at least 32 bytes")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	k := make([]byte, len(key))
	copy(k, key)

	return &SignedCodec{
		key:    k,
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}, nil
}

func (c *SignedCodec) Encode(s *Session) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	claims := sessionClaims{
		UserID: s.UserID,
		Role:   string(s.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       s.SessionID,
			Issuer:   c.issuer,
			IssuedAt: jwt.NewNumericDate(time.Unix(s.CreatedAt, 0)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

func (c *SignedCodec) Decode(value string) (*Session, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.Count(value, ".") != 2 {
		return nil, ErrMalformedSession
	}

	var claims sessionClaims
	_, err := c.parser.ParseWithClaims(value, &claims, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, ErrMalformedSession
		}
		return nil, ErrInvalidSession
	}

	if claims.IssuedAt == nil {
		return nil, ErrInvalidSession
	}

	return fromWire(wireSession{
		UserID:    claims.UserID,
		Role:      claims.Role,
		SessionID: claims.ID,
		CreatedAt: claims.IssuedAt.Unix(),
	})
}
