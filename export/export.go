// Package export writes parsed SMS records to archive formats other than
// IMAP: mbox, SQLite, XLSX and CSV.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dhcgn/vmg-to-imap/mailmsg"
	"github.com/dhcgn/vmg-to-imap/mbox"
	"github.com/dhcgn/vmg-to-imap/model"
)

type Format string

const (
	FormatMbox   Format = "mbox"
	FormatSQLite Format = "sqlite"
	FormatXLSX   Format = "xlsx"
	FormatCSV    Format = "csv"
)

var ErrUnknownFormat = errors.New("unknown export format")

// timestampLayout is used wherever a timestamp is stored as text.
const timestampLayout = time.RFC3339

var columns = []string{"file", "hash", "number", "direction", "timestamp", "body"}

// Formats lists the supported formats in help order.
func Formats() []Format {
	return []Format{FormatMbox, FormatSQLite, FormatXLSX, FormatCSV}
}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
}

// Extension returns the conventional file suffix for f.
func (f Format) Extension() string {
	switch f {
	case FormatSQLite:
		return ".db"
	default:
		return "." + string(f)
	}
}

type Options struct {
	SelfAddress string
}

// WriteFile writes msgs to path in the given format, replacing any
// existing file.
func WriteFile(format Format, path string, msgs []model.Message, opts Options) error {
	switch format {
	case FormatMbox:
		return mbox.WriteFile(path, msgs, mailmsg.Options{SelfAddress: opts.SelfAddress})
	case FormatSQLite:
		return WriteSQLite(path, msgs)
	case FormatXLSX:
		return WriteXLSX(path, msgs)
	case FormatCSV:
		return WriteCSVFile(path, msgs)
	}
	return fmt.Errorf("%w %q", ErrUnknownFormat, format)
}

func row(msg model.Message) []string {
	return []string{msg.ID, msg.Hash, msg.Number, msg.Direction(), formatTimestamp(msg.Timestamp), msg.Body}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}
