package kms

import (
	"errors"
	"fmt"
)

var (
	ErrorEmptyCiphertext = errors.New("encrypt response contained no ciphertext")
	ErrorEmptyPlaintext  = errors.New("decrypt response contained no plaintext")
)

// APIError is a structured error payload returned by the key service.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("key service error %d (%s): %s", e.Code, e.Status, e.Message)
}

// Retryable reports whether the failure is transient: the service asked to
// slow down or failed internally. Client-side errors (4xx other than 429)
// are permanent.
func (e *APIError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}
