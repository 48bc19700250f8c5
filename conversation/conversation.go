// Package conversation groups SMS records by the remote party's number and
// renders them as chat threads.
package conversation

import (
	"sort"
	"strings"
	"time"

	"github.com/dhcgn/vmg-to-imap/model"
)

// LineLayout is the date format used in thread lines.
const LineLayout = "02.01.2006, 15:04"

const noDate = "--.--.----, --:--"

// Thread summarizes all records exchanged with one number.
type Thread struct {
	Number   string
	Inbox    int
	Outbound int
	First    time.Time
	Last     time.Time
}

func (t Thread) Total() int {
	return t.Inbox + t.Outbound
}

// Numbers returns every distinct number in msgs in lexical order. Records
// without a number contribute "".
func Numbers(msgs []model.Message) []string {
	seen := make(map[string]struct{}, len(msgs))
	numbers := make([]string, 0)
	for _, msg := range msgs {
		if _, ok := seen[msg.Number]; ok {
			continue
		}
		seen[msg.Number] = struct{}{}
		numbers = append(numbers, msg.Number)
	}
	sort.Strings(numbers)
	return numbers
}

// ForNumber returns the records exchanged with number, oldest first. Records
// with equal (or missing) timestamps keep their input order.
func ForNumber(msgs []model.Message, number string) []model.Message {
	out := make([]model.Message, 0)
	for _, msg := range msgs {
		if msg.Number == number {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Summarize returns one Thread per number, ordered by number. First and Last
// ignore records without a timestamp.
func Summarize(msgs []model.Message) []Thread {
	byNumber := make(map[string]*Thread)
	for _, msg := range msgs {
		thread, ok := byNumber[msg.Number]
		if !ok {
			thread = &Thread{Number: msg.Number}
			byNumber[msg.Number] = thread
		}
		if msg.Inbox {
			thread.Inbox++
		} else {
			thread.Outbound++
		}
		if msg.Timestamp.IsZero() {
			continue
		}
		if thread.First.IsZero() || msg.Timestamp.Before(thread.First) {
			thread.First = msg.Timestamp
		}
		if msg.Timestamp.After(thread.Last) {
			thread.Last = msg.Timestamp
		}
	}

	threads := make([]Thread, 0, len(byNumber))
	for _, number := range Numbers(msgs) {
		threads = append(threads, *byNumber[number])
	}
	return threads
}

// FormatTime renders t with LineLayout in loc, so that timestamps parsed
// with different offsets share one clock. A nil loc keeps t's own zone.
func FormatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return noDate
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(LineLayout)
}

// FormatLine renders msg as "> dd.MM.yyyy, HH:mm: text" for received and
// "< ..." for sent records, with the time shown in loc.
func FormatLine(msg model.Message, loc *time.Location) string {
	var b strings.Builder
	if msg.Inbox {
		b.WriteString("> ")
	} else {
		b.WriteString("< ")
	}
	b.WriteString(FormatTime(msg.Timestamp, loc))
	b.WriteString(": ")
	b.WriteString(msg.Body)
	return b.String()
}
