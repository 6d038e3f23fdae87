package session

import (
	"errors"
	"net/http"
	"time"
)

// DefaultCookieName is the session cookie key used when none is configured.
const DefaultCookieName = "estate_session"

const maxFutureSkew = time.Minute

// Reader extracts a session from request cookies. A Reader holds no mutable state and is
// safe for concurrent use.
type Reader struct {
	cookieName string
	codec      Codec
	maxAge     time.Duration
	now        func() time.Time
}

// ReaderOption customizes a Reader.
type ReaderOption func(*Reader)

// WithMaxAge rejects sessions created longer than d ago. Zero disables the check.
func WithMaxAge(d time.Duration) ReaderOption {
	return func(r *Reader) {
		r.maxAge = d
	}
}

// WithClock overrides the time source used for age checks.
func WithClock(now func() time.Time) ReaderOption {
	return func(r *Reader) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReader returns a Reader for cookieName decoding through codec.
func NewReader(cookieName string, codec Codec, opts ...ReaderOption) *Reader {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	r := &Reader{
		cookieName: cookieName,
		codec:      codec,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CookieName returns the cookie key this reader looks up.
func (r *Reader) CookieName() string {
	return r.cookieName
}

// Read returns the request's session, or false when the cookie is absent or does not
// decode. A false result is anonymous access, never an error; callers enforce denial.
func (r *Reader) Read(req *http.Request) (*Session, bool) {
	s, err := r.Inspect(req)
	if err != nil {
		return nil, false
	}
	return s, true
}

// Inspect is Read with the failure reason: ErrAbsent, ErrMalformedSession or
// ErrInvalidSession.
func (r *Reader) Inspect(req *http.Request) (*Session, error) {
	if req == nil {
		return nil, ErrAbsent
	}
	cookie, err := req.Cookie(r.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrAbsent
	}
	return r.InspectValue(cookie.Value)
}

// InspectValue decodes a raw cookie value and applies the age policy.
func (r *Reader) InspectValue(value string) (*Session, error) {
	if value == "" {
		return nil, ErrAbsent
	}
	if r.codec == nil {
		return nil, ErrMalformedSession
	}

	s, err := r.decode(value)
	if err != nil {
		return nil, err
	}

	now := r.now()
	created := time.Unix(s.CreatedAt, 0)
	if created.After(now.Add(maxFutureSkew)) {
		return nil, ErrInvalidSession
	}
	if r.maxAge > 0 && now.Sub(created) > r.maxAge {
		return nil, ErrInvalidSession
	}

	return s, nil
}

// decode shields callers from codecs that panic on hostile input.
func (r *Reader) decode(value string) (s *Session, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s, err = nil, ErrMalformedSession
		}
	}()
	s, err = r.codec.Decode(value)
	if err != nil && !errors.Is(err, ErrInvalidSession) {
		return nil, ErrMalformedSession
	}
	if err == nil && s == nil {
		return nil, ErrMalformedSession
	}
	return s, err
}
