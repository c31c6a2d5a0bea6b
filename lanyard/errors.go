package lanyard

import (
	"errors"
	"fmt"
)

var (
	ErrMissingUserID           = errors.New("lanyard: user id is required")
	ErrUnknownUser             = errors.New("lanyard: user is not monitored")
	ErrMalformedPayload        = errors.New("lanyard: malformed payload")
	ErrUnknownOpcode           = errors.New("lanyard: unknown opcode")
	ErrReconnectBudgetExceeded = errors.New("lanyard: reconnect attempts exhausted")
)

type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return "lanyard: api error"
	}

	if e.Code != "" {
		return fmt.Sprintf("lanyard api error status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}

	return fmt.Sprintf("lanyard api error status=%d message=%s", e.StatusCode, e.Message)
}

// Unwrap maps the service's "not monitored" code onto ErrUnknownUser.
func (e *APIError) Unwrap() error {
	if e != nil && e.Code == "user_not_monitored" {
		return ErrUnknownUser
	}

	return nil
}
