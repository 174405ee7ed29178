package models

// Queue is a broker queue record. Queues are discovered by listing the
// broker, not created by this system, so Owner may be nil when the
// queue was declared outside of it.
type Queue struct {
	Name  string
	Owner *PulseUser
}
