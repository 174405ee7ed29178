// Package services contains the server-side business logic: pulse user
// registration and reconciliation, queue administration, and user
// management. Every mutating operation here touches two independently
// failing systems (the local store and the broker); the ordering
// discipline is always broker first, local commit second, so a broker
// failure never leaves an orphaned local record.
package services

// Outcome is the structured result handed back to the web surface: a
// success flag plus optional human-readable messages and errors.
//
// A partial success (e.g. an owner-list update where some emails did
// not resolve) keeps OK true and reports the problem in Errors; the
// committed subset is not rolled back.
type Outcome struct {
	OK       bool     `json:"ok"`
	Messages []string `json:"messages,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func success(messages ...string) *Outcome {
	return &Outcome{OK: true, Messages: messages}
}

func failure(errors ...string) *Outcome {
	return &Outcome{OK: false, Errors: errors}
}
