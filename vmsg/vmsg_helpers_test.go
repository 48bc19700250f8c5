package vmsg

import (
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

// encodeLines joins lines with CRLF and encodes them as UTF-16LE with a
// byte order mark, the layout phones write.
func encodeLines(t testing.TB, lines ...string) []byte {
	t.Helper()
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte(strings.Join(lines, "\r\n") + "\r\n"))
	if err != nil {
		t.Fatalf("encode UTF-16LE: %v", err)
	}
	return data
}

func hasDiagnostic(diags []Diagnostic, kind DiagnosticKind) bool {
	for _, d := range diags {
		if d.Kind == kind {
			return true
		}
	}
	return false
}
