package session

import (
	"net/http"
	"strings"
	"time"
)

// CookieOptions controls the attributes of the written session cookie.
type CookieOptions struct {
	Name     string
	Path     string
	Domain   string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
}

// Writer sets and clears the session cookie.
type Writer struct {
	codec Codec
	opts  CookieOptions
}

// NewWriter returns a Writer encoding through codec.
func NewWriter(codec Codec, opts CookieOptions) *Writer {
	if opts.Name == "" {
		opts.Name = DefaultCookieName
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	return &Writer{codec: codec, opts: opts}
}

// Cookie builds the cookie carrying s without writing it.
func (w *Writer) Cookie(s *Session) (*http.Cookie, error) {
	value, err := w.codec.Encode(s)
	if err != nil {
		return nil, err
	}

	c := w.base()
	c.Value = value
	if w.opts.MaxAge > 0 {
		c.MaxAge = int(w.opts.MaxAge / time.Second)
		c.Expires = s.Created().Add(w.opts.MaxAge)
	}
	return c, nil
}

// Set writes the session cookie to the response.
func (w *Writer) Set(rw http.ResponseWriter, s *Session) error {
	c, err := w.Cookie(s)
	if err != nil {
		return err
	}
	http.SetCookie(rw, c)
	return nil
}

// Clear expires the session cookie on the client.
func (w *Writer) Clear(rw http.ResponseWriter) {
	c := w.base()
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(rw, c)
}

func (w *Writer) base() *http.Cookie {
	return &http.Cookie{
		Name:     w.opts.Name,
		Path:     w.opts.Path,
		Domain:   w.opts.Domain,
		Secure:   w.opts.Secure,
		HttpOnly: true,
		SameSite: w.opts.SameSite,
	}
}

// ParseSameSite maps "lax", "strict" or "none" to an http.SameSite value.
func ParseSameSite(raw string) (http.SameSite, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "lax":
		return http.SameSiteLaxMode, true
	case "strict":
		return http.SameSiteStrictMode, true
	case "none":
		return http.SameSiteNoneMode, true
	default:
		return 0, false
	}
}
