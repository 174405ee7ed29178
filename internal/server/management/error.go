package management

import "fmt"

// Error reports an API response body that could not be parsed as JSON,
// identifying the request that produced it.
type Error struct {
	Method  string
	Path    string
	Payload []byte
	Body    []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("error when calling '%s %s' with data=%s. Received: %s",
		e.Method, e.Path, e.Payload, e.Body)
}
