// Package mbox writes SMS records into an mbox archive, one mail per
// vMessage file, so they can be imported by any mail client.
package mbox

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/vmg-to-imap/mailmsg"
	"github.com/dhcgn/vmg-to-imap/model"
)

// Write renders every message and appends it to w in mboxrd format.
func Write(w io.Writer, msgs []model.Message, opts mailmsg.Options) error {
	mw := mboxlib.NewWriter(w)

	for _, msg := range msgs {
		raw, err := mailmsg.Render(msg, opts)
		if err != nil {
			return fmt.Errorf("render %s: %w", msg.ID, err)
		}

		mailbox, err := mw.CreateMessage(envelopeSender(msg, opts), envelopeTime(msg))
		if err != nil {
			return fmt.Errorf("create mbox message %s: %w", msg.ID, err)
		}
		if _, err := mailbox.Write(raw); err != nil {
			return fmt.Errorf("write mbox message %s: %w", msg.ID, err)
		}
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("close mbox: %w", err)
	}
	return nil
}

// WriteFile creates (or truncates) path and writes msgs into it.
func WriteFile(path string, msgs []model.Message, opts mailmsg.Options) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create mbox file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close mbox file: %w", cerr)
		}
	}()

	buffered := bufio.NewWriterSize(file, 64*1024)
	if err := Write(buffered, msgs, opts); err != nil {
		return err
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("flush mbox file: %w", err)
	}
	return nil
}

func envelopeSender(msg model.Message, opts mailmsg.Options) string {
	if msg.Inbox {
		return mailmsg.PeerAddress(msg.Number).Address
	}
	if opts.SelfAddress != "" {
		return opts.SelfAddress
	}
	return "MAILER-DAEMON"
}

func envelopeTime(msg model.Message) time.Time {
	if msg.Timestamp.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return msg.Timestamp.UTC()
}
