// Package fetch retrieves the device's management pages.
package fetch

import (
	"context"
	"errors"
	"fmt"
)

// Fetcher returns the HTML of a page of the device, path is relative to the
// device's base url.
//
// note: fault injection point
type Fetcher interface {
	Fetch(ctx context.Context, path string) (string, error)
}

var (
	ErrEmptyBody = errors.New("empty response body")
	// ErrShortBody is a body too short to be a status page or without any
	// markup, what truncated responses and bare login redirects look like.
	ErrShortBody = errors.New("suspiciously short response body")
)

// TransportError is a page that could not be retrieved. Status is 0 when no
// response was received at all.
type TransportError struct {
	Path   string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
