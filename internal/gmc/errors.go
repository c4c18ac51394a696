package gmc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var (
	// ErrAuth indicates the upstream rejected the account's OAuth credentials.
	// Cached data for the account must be dropped and the user re-authenticated.
	ErrAuth = errors.New("gmc: authentication rejected")
	// ErrPermission indicates the token is valid but has no access to the
	// requested merchant account.
	ErrPermission = errors.New("gmc: account access denied")
	// ErrTransient covers network, rate-limit, and unclassified upstream failures.
	ErrTransient = errors.New("gmc: upstream unavailable")
)

// classify maps SDK and transport failures onto the adapter's taxonomy.
// Context cancellation passes through untouched so callers can distinguish
// their own deadlines from upstream trouble.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: token refresh failed: %v", ErrAuth, retrieveErr)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuth, apiErr.Message)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrPermission, apiErr.Message)
		}
		return fmt.Errorf("%w: status %d: %s", ErrTransient, apiErr.Code, apiErr.Message)
	}

	return fmt.Errorf("%w: %v", ErrTransient, err)
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusBadRequest
	}
	return false
}
