package assistant

import "fmt"

// StatusError captures a non-2xx response from the assistant endpoint.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// HTTPStatusCode reports the upstream status.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// TransportError is surfaced once every allowed attempt has failed.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("assistant: failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
