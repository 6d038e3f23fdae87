package session

import "errors"

var (
	// ErrAbsent reports that the request carried no session cookie.
	ErrAbsent = errors.New("session cookie absent")
	// ErrMalformedSession reports a cookie value that is not a serialized session.
	ErrMalformedSession = errors.New("malformed session")
	// ErrInvalidSession reports a well-formed value with missing fields, an unknown role,
	// a bad signature, or an expired timestamp.
	ErrInvalidSession = errors.New("invalid session")
)
