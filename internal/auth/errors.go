package auth

import "fmt"

// ConfigurationError reports a missing or unusable OAuth setting.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Setting)
}

// AuthError is an error reported by the provider on the redirect, or a
// redirect that cannot be accepted (no code, state mismatch).
type AuthError struct {
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authentication error: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authentication error: %s", e.Code)
}

// TokenExchangeError reports that the authorization code could not be
// turned into a token. Status is the HTTP status of the rejecting party,
// zero for transport failures.
type TokenExchangeError struct {
	Status int
	Reason string
	Err    error
}

func (e *TokenExchangeError) Error() string {
	msg := "token exchange failed"
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}
