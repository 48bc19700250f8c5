package model

import "time"

// Message represents a single SMS extracted from a vMessage (.vmg) file.
// A zero Timestamp means no usable date field was found; an empty Number
// means the file carried no TEL field.
type Message struct {
	ID        string
	Hash      string
	Path      string
	Size      int64
	Number    string
	Timestamp time.Time
	Body      string
	Inbox     bool
}

// Direction returns "inbox" for delivered messages and "outbound" otherwise.
func (m Message) Direction() string {
	if m.Inbox {
		return "inbox"
	}
	return "outbound"
}

// Partial reports whether the record lacks a number or a timestamp.
func (m Message) Partial() bool {
	return m.Number == "" || m.Timestamp.IsZero()
}

// Envelope wraps a message alongside an optional error encountered while decoding.
type Envelope struct {
	Message Message
	Err     error
}
