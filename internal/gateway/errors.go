package gateway

import "fmt"

// TransportError is returned when a store request could not complete or the
// store answered with a non-2xx status. StatusCode is zero when no response
// was received.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("nas %s %s: store returned status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("nas %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
