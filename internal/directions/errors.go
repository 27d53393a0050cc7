package directions

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is against a *RequestError.
var (
	ErrTransport = errors.New("directions: transport failure")
	ErrEmptyData = errors.New("directions: empty response body")
	ErrDecode    = errors.New("directions: undecodable response")
)

// RequestError describes why a route request produced no response.
// Kind is one of ErrTransport, ErrEmptyData or ErrDecode.
type RequestError struct {
	Kind error
	URL  string
	Err  error
}

func (e *RequestError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (%s)", e.Kind, e.URL)
	}
	return fmt.Sprintf("%v (%s): %v", e.Kind, e.URL, e.Err)
}

// Is matches the error's Kind.
func (e *RequestError) Is(target error) bool {
	return e.Kind == target
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
