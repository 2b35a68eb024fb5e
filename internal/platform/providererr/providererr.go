// Package providererr classifies failures of external providers into
// transient (worth retrying) and permanent ones.
package providererr

import (
	"errors"
	"fmt"

	"github.com/yungbote/contentagent/internal/platform/httpx"
)

type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient provider error: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

type PermanentError struct {
	Provider string
	Err      error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent provider error: %v", e.Provider, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

func Transient(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Provider: provider, Err: err}
}

func Permanent(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Provider: provider, Err: err}
}

// Classify wraps err as transient or permanent unless it already carries a
// classification.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) || IsPermanent(err) {
		return err
	}
	if httpx.IsRetryableError(err) {
		return Transient(provider, err)
	}
	return Permanent(provider, err)
}

// FromStatus classifies a non-2xx HTTP response.
func FromStatus(provider string, status int, body string) error {
	return Classify(provider, &httpx.StatusError{StatusCode: status, Body: body})
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
