package gmail

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/teemow/inboxchat/internal/google"
)

var (
	// ErrAuthRequired means the cached credential is missing, expired beyond
	// refresh or revoked. The user has to authenticate again.
	ErrAuthRequired = errors.New("gmail authentication required")

	// ErrNotFound means the requested message or label does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument means a request was rejected before reaching Gmail.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ServiceError is a Gmail API failure other than authentication or
// not-found, carrying the HTTP status the service returned.
type ServiceError struct {
	Operation string
	Code      int
	Message   string
	Err       error
}

func (e *ServiceError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("gmail %s failed: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("gmail %s failed (HTTP %d): %s", e.Operation, e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// rate limit reasons Gmail reports with HTTP 403
var quotaReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
}

// classify maps an error from the Gmail client library onto the adapter's
// error taxonomy.
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrAuthRequired) {
		return err
	}
	if errors.Is(err, google.ErrNoToken) {
		return fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: token refresh failed: %v", ErrAuthRequired, retrieveErr)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthRequired, apiErr.Message)
		case http.StatusForbidden:
			if !isQuotaError(apiErr) {
				return fmt.Errorf("%w: %s", ErrAuthRequired, apiErr.Message)
			}
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", operation, ErrNotFound)
		}
		return &ServiceError{Operation: operation, Code: apiErr.Code, Message: apiErr.Message, Err: err}
	}

	return &ServiceError{Operation: operation, Message: err.Error(), Err: err}
}

func isQuotaError(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		if quotaReasons[item.Reason] {
			return true
		}
	}
	return false
}

// IsAuthError reports whether err requires the user to authenticate again.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthRequired)
}
