package wiki

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrEditConflict is reported when the page changed after basetimestamp.
	ErrEditConflict = errors.New("edit conflict")
	// ErrStashMissing is reported when a stashed upload key has expired.
	ErrStashMissing = errors.New("stashed file missing")
	// ErrBlocked is reported for users blocked from editing.
	ErrBlocked = errors.New("user is blocked")
	// ErrPermission is reported when the user lacks a required right.
	ErrPermission = errors.New("permission denied")
	// ErrNotFound is reported for pages or files that do not exist.
	ErrNotFound = errors.New("not found")
)

// APIError is an error returned in an API response body.
type APIError struct {
	Code string
	Info string
}

func (e *APIError) Error() string {
	if e.Info == "" {
		return "api error " + e.Code
	}
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

// Unwrap maps well known codes onto the package sentinels.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "editconflict":
		return ErrEditConflict
	case "stashfilenotfound", "stashnosuchfilekey", "stashedfilenotfound", "stashfailed":
		return ErrStashMissing
	case "blocked", "autoblocked", "globalblocking-blockedtext":
		return ErrBlocked
	case "permissiondenied", "protectedpage", "cascadeprotected", "badaccess-groups":
		return ErrPermission
	case "missingtitle", "nosuchpageid":
		return ErrNotFound
	}
	return nil
}

// HTTPError is a non-success HTTP status.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d %s from %s", e.Status, http.StatusText(e.Status), e.URL)
}

// IsAbort reports whether err comes from a cancelled context. Aborts are
// not failures and are never shown to the user.
func IsAbort(err error) bool {
	return errors.Is(err, context.Canceled)
}

// transient reports whether a failed request is worth one more attempt.
func transient(err error) bool {
	if err == nil || IsAbort(err) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= 500 || httpErr.Status == http.StatusTooManyRequests
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == "maxlag" || apiErr.Code == "ratelimited"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
