// Package mailmsg renders parsed SMS records as RFC 5322 messages so they
// can be stored in mail archives.
package mailmsg

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/dhcgn/vmg-to-imap/model"
)

const (
	smsDomain       = "sms.invalid"
	messageIDDomain = "vmg-to-imap"
	unknownNumber   = "unknown"
)

// messageIDNamespace keeps Message-Ids stable for identical file contents.
var messageIDNamespace = uuid.MustParse("6f1d2b8e-4c4a-4a53-9b61-2f5c0e8d7a10")

// Options control the addresses used for the phone owner.
type Options struct {
	SelfAddress string
}

// Render builds the mail representation of msg: the remote party's number
// becomes the sender of inbox messages and the recipient of outbound ones.
func Render(msg model.Message, opts Options) ([]byte, error) {
	self, err := mail.ParseAddress(selfAddress(opts))
	if err != nil {
		return nil, fmt.Errorf("self address: %w", err)
	}
	peer := PeerAddress(msg.Number)

	var h mail.Header
	if msg.Inbox {
		h.SetAddressList("From", []*mail.Address{peer})
		h.SetAddressList("To", []*mail.Address{self})
	} else {
		h.SetAddressList("From", []*mail.Address{self})
		h.SetAddressList("To", []*mail.Address{peer})
	}
	h.SetSubject(Subject(msg))
	if !msg.Timestamp.IsZero() {
		h.SetDate(msg.Timestamp)
	}
	if msg.Hash != "" {
		h.SetMessageID(MessageID(msg.Hash))
	}
	if msg.Path != "" {
		h.Set("X-Vmg-Path", msg.Path)
	}
	h.Set("X-Vmg-Direction", msg.Direction())
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message: %w", err)
	}

	return buf.Bytes(), nil
}

// Subject returns the subject line used for msg.
func Subject(msg model.Message) string {
	number := msg.Number
	if number == "" {
		number = unknownNumber
	}
	if msg.Inbox {
		return "SMS from " + number
	}
	return "SMS to " + number
}

// MessageID derives a stable Message-Id (without angle brackets) from the
// content hash of the source file.
func MessageID(hash string) string {
	return uuid.NewSHA1(messageIDNamespace, []byte(hash)).String() + "@" + messageIDDomain
}

// PeerAddress maps a phone number onto a pseudo mail address.
func PeerAddress(number string) *mail.Address {
	local := sanitizeNumber(number)
	if local == "" {
		local = unknownNumber
	}
	return &mail.Address{Name: number, Address: local + "@" + smsDomain}
}

func sanitizeNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		switch {
		case r >= '0' && r <= '9', r == '+':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func selfAddress(opts Options) string {
	if strings.TrimSpace(opts.SelfAddress) == "" {
		return "me@" + smsDomain
	}
	return opts.SelfAddress
}
