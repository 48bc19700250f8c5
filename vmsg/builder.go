package vmsg

import (
	"strings"
	"time"

	"github.com/dhcgn/vmg-to-imap/model"
)

// builder accumulates the fields of one record. It is shared by every
// nesting level of a single parse and never fails.
type builder struct {
	number    string
	inbox     bool
	timestamp time.Time
	hasTime   bool
	body      strings.Builder
	bodyLines int
	separator string
}

func (b *builder) SetNumber(number string) {
	b.number = number
}

func (b *builder) SetDirection(inbox bool) {
	b.inbox = inbox
}

func (b *builder) AppendText(line string) {
	if b.bodyLines > 0 {
		b.body.WriteString(b.separator)
	}
	b.body.WriteString(line)
	b.bodyLines++
}

// SetTimestampIfAbsent stores t unless a timestamp was already accepted and
// reports whether t was taken.
func (b *builder) SetTimestampIfAbsent(t time.Time) bool {
	if b.hasTime {
		return false
	}
	b.timestamp = t
	b.hasTime = true
	return true
}

func (b *builder) Message() model.Message {
	return model.Message{
		Number:    b.number,
		Timestamp: b.timestamp,
		Body:      b.body.String(),
		Inbox:     b.inbox,
	}
}
