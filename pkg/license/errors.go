package license

import (
	"errors"
	"fmt"
)

var (
	// ErrLicenseDenied is matched by every admission refusal.
	ErrLicenseDenied = errors.New("license denied")

	// ErrCacheUnavailable is logged when the shared verdict cache cannot be reached.
	ErrCacheUnavailable = errors.New("license cache unavailable")

	// ErrServerUnavailable is returned by the client for transport failures and non-2xx answers.
	ErrServerUnavailable = errors.New("license server unavailable")

	// ErrMalformedResponse is returned by the client when the answer cannot be decoded.
	ErrMalformedResponse = errors.New("malformed license server response")
)

// DeniedError is an admission refusal for one community.
type DeniedError struct {
	CommunityID string
	Reason      string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("license denied for community %s: %s", e.CommunityID, e.Reason)
}

func (e *DeniedError) Unwrap() error {
	return ErrLicenseDenied
}

func denied(communityID, format string, args ...any) *DeniedError {
	return &DeniedError{CommunityID: communityID, Reason: fmt.Sprintf(format, args...)}
}
