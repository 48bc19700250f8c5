package vmsg

import (
	"bytes"
	_ "embed"
	"errors"
	"strings"
	"testing"
	"time"
)

//go:embed test_data/deliver.vmg
var deliverVmg []byte

func parseLines(t *testing.T, lines []string, opts ...Option) Result {
	t.Helper()
	opts = append([]Option{WithLocation(time.UTC)}, opts...)
	res, err := Parse(bytes.NewReader(encodeLines(t, lines...)), opts...)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return res
}

func TestParse_NokiaInbox(t *testing.T) {
	res, err := Parse(bytes.NewReader(deliverVmg), WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	msg := res.Message
	if msg.Number != "+491701234567" {
		t.Errorf("Number = %q", msg.Number)
	}
	if !msg.Inbox {
		t.Error("expected inbox message")
	}
	if want := time.Date(2012, 3, 6, 17, 37, 32, 0, time.UTC); !msg.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v (X-NOK-DT precedes the body date)", msg.Timestamp, want)
	}
	if msg.Body != "Hallo Welt, grüße aus München" {
		t.Errorf("Body = %q", msg.Body)
	}
	if !res.Complete {
		t.Error("expected complete container")
	}
	if !hasDiagnostic(res.Diagnostics, DiagIgnoredTimestamp) {
		t.Error("expected the second date to be reported as ignored")
	}
	if !hasDiagnostic(res.Diagnostics, DiagVersion) {
		t.Error("expected VERSION diagnostics")
	}
}

func TestParse_MinimalRecord(t *testing.T) {
	res := parseLines(t, []string{
		"BEGIN:VMSG",
		"X-MESSAGE-TYPE:DELIVER",
		"BEGIN:VCARD",
		"TEL:123",
		"END:VCARD",
		"BEGIN:VENV",
		"BEGIN:VBODY",
		"Date:05.06.2010 07:08:09",
		"hello",
		"END:VBODY",
		"END:VENV",
		"END:VMSG",
	})

	msg := res.Message
	want := time.Date(2010, 6, 5, 7, 8, 9, 0, time.UTC)
	if msg.Number != "123" || !msg.Inbox || !msg.Timestamp.Equal(want) || msg.Body != "hello" {
		t.Errorf("unexpected record: %+v", msg)
	}
	if !res.Complete {
		t.Error("expected complete container")
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("expected no diagnostics, got %v", res.Diagnostics)
	}
}

func TestParse_TimestampPriority(t *testing.T) {
	wrap := func(container []string, body ...string) []string {
		lines := append([]string{"BEGIN:VMSG"}, container...)
		lines = append(lines, "BEGIN:VENV", "BEGIN:VBODY")
		lines = append(lines, body...)
		return append(lines, "END:VBODY", "END:VENV", "END:VMSG")
	}

	tests := []struct {
		name     string
		lines    []string
		want     time.Time
		wantDiag DiagnosticKind
	}{
		{
			name:  "single compact",
			lines: wrap([]string{"X-NOK-DT:20120306T173732Z"}),
			want:  time.Date(2012, 3, 6, 17, 37, 32, 0, time.UTC),
		},
		{
			name:  "single dotted",
			lines: wrap(nil, "Date:06.03.2012 17:37:32"),
			want:  time.Date(2012, 3, 6, 17, 37, 32, 0, time.UTC),
		},
		{
			name:     "first of two dotted wins",
			lines:    wrap(nil, "Date:01.01.2010 00:00:00", "Date:02.02.2011 11:11:11"),
			want:     time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
			wantDiag: DiagIgnoredTimestamp,
		},
		{
			name:     "compact before dotted wins",
			lines:    wrap([]string{"X-NOK-DT:20000101T000000Z"}, "Date:02.02.2011 11:11:11"),
			want:     time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			wantDiag: DiagIgnoredTimestamp,
		},
		{
			name: "dotted before compact wins",
			lines: []string{
				"BEGIN:VMSG",
				"BEGIN:VENV", "BEGIN:VBODY", "Date:02.02.2011 11:11:11", "END:VBODY", "END:VENV",
				"X-NOK-DT:20000101T000000Z",
				"END:VMSG",
			},
			want:     time.Date(2011, 2, 2, 11, 11, 11, 0, time.UTC),
			wantDiag: DiagIgnoredTimestamp,
		},
		{
			name:     "malformed then well-formed",
			lines:    wrap([]string{"X-NOK-DT:yesterday"}, "Date:02.02.2011 11:11:11"),
			want:     time.Date(2011, 2, 2, 11, 11, 11, 0, time.UTC),
			wantDiag: DiagInvalidTimestamp,
		},
		{
			name:     "malformed only",
			lines:    wrap(nil, "Date:31.02.2011 11:11:11"),
			wantDiag: DiagInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parseLines(t, tt.lines)
			if !res.Message.Timestamp.Equal(tt.want) {
				t.Errorf("Timestamp = %v, want %v", res.Message.Timestamp, tt.want)
			}
			if tt.wantDiag != "" && !hasDiagnostic(res.Diagnostics, tt.wantDiag) {
				t.Errorf("expected %s diagnostic, got %v", tt.wantDiag, res.Diagnostics)
			}
		})
	}
}

func TestParse_BodyConcatenation(t *testing.T) {
	lines := []string{"BEGIN:VMSG", "BEGIN:VENV", "BEGIN:VBODY", "ab", "Date:01.01.2010 00:00:00", "cd", "END:VBODY", "END:VENV", "END:VMSG"}

	if got := parseLines(t, lines).Message.Body; got != "abcd" {
		t.Errorf("Body = %q, want %q", got, "abcd")
	}
	if got := parseLines(t, lines, WithBodySeparator("\n")).Message.Body; got != "ab\ncd" {
		t.Errorf("Body with separator = %q, want %q", got, "ab\ncd")
	}
}

func TestParse_BodyKeepsColonLines(t *testing.T) {
	res := parseLines(t, []string{"BEGIN:VMSG", "BEGIN:VENV", "BEGIN:VBODY", "TEL:not a number", "Treffen um 10:30", "END:VBODY", "END:VENV", "END:VMSG"})
	if res.Message.Body != "TEL:not a numberTreffen um 10:30" {
		t.Errorf("Body = %q", res.Message.Body)
	}
	if res.Message.Number != "" {
		t.Errorf("Number = %q, body lines must not set the number", res.Message.Number)
	}
}

func TestParse_Direction(t *testing.T) {
	tests := []struct {
		name      string
		fields    []string
		wantInbox bool
		wantDiag  bool
	}{
		{name: "absent", fields: nil, wantInbox: false},
		{name: "deliver", fields: []string{"X-MESSAGE-TYPE:DELIVER"}, wantInbox: true},
		{name: "submit", fields: []string{"X-MESSAGE-TYPE:SUBMIT"}, wantInbox: false},
		{name: "unknown keeps default", fields: []string{"X-MESSAGE-TYPE:DRAFT"}, wantInbox: false, wantDiag: true},
		{name: "unknown keeps earlier value", fields: []string{"X-MESSAGE-TYPE:DELIVER", "X-MESSAGE-TYPE:DRAFT"}, wantInbox: true, wantDiag: true},
		{name: "submit after deliver", fields: []string{"X-MESSAGE-TYPE:DELIVER", "X-MESSAGE-TYPE:SUBMIT"}, wantInbox: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := append([]string{"BEGIN:VMSG"}, tt.fields...)
			lines = append(lines, "END:VMSG")
			res := parseLines(t, lines)
			if res.Message.Inbox != tt.wantInbox {
				t.Errorf("Inbox = %v, want %v", res.Message.Inbox, tt.wantInbox)
			}
			if got := hasDiagnostic(res.Diagnostics, DiagInvalidDirection); got != tt.wantDiag {
				t.Errorf("invalid direction diagnostic = %v, want %v", got, tt.wantDiag)
			}
		})
	}
}

func TestParse_TruncatedInput(t *testing.T) {
	res := parseLines(t, []string{
		"BEGIN:VMSG",
		"X-MESSAGE-TYPE:DELIVER",
		"BEGIN:VCARD",
		"TEL:555",
		"END:VCARD",
		"BEGIN:VENV",
		"BEGIN:VBODY",
		"Date:01.02.2013 10:11:12",
		"cut off",
	})

	msg := res.Message
	if msg.Number != "555" || !msg.Inbox || msg.Body != "cut off" {
		t.Errorf("unexpected partial record: %+v", msg)
	}
	if !msg.Timestamp.Equal(time.Date(2013, 2, 1, 10, 11, 12, 0, time.UTC)) {
		t.Errorf("Timestamp = %v", msg.Timestamp)
	}
	if res.Complete {
		t.Error("truncated container must not be reported complete")
	}
	if !hasDiagnostic(res.Diagnostics, DiagUnclosedSection) {
		t.Error("expected unclosed section diagnostic")
	}
}

func TestParse_NestedEnvelopes(t *testing.T) {
	res := parseLines(t, []string{
		"BEGIN:VMSG",
		"X-MESSAGE-TYPE:SUBMIT",
		"BEGIN:VENV",
		"BEGIN:VCARD",
		"TEL:+4930123",
		"END:VCARD",
		"BEGIN:VENV",
		"BEGIN:VENV",
		"BEGIN:VBODY",
		"Date:24.12.2011 18:30:00",
		"deep",
		"END:VBODY",
		"END:VENV",
		"END:VENV",
		"END:VENV",
		"END:VMSG",
	})

	msg := res.Message
	if msg.Number != "+4930123" || msg.Body != "deep" || msg.Inbox {
		t.Errorf("unexpected record: %+v", msg)
	}
	if !msg.Timestamp.Equal(time.Date(2011, 12, 24, 18, 30, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v", msg.Timestamp)
	}
	if !res.Complete {
		t.Errorf("expected complete container, diagnostics: %v", res.Diagnostics)
	}
}

func TestParse_NumberLastWriterWins(t *testing.T) {
	res := parseLines(t, []string{
		"BEGIN:VMSG",
		"BEGIN:VCARD",
		"TEL;TYPE=CELL:111",
		"END:VCARD",
		"BEGIN:VENV",
		"TEL: 222 ",
		"END:VENV",
		"END:VMSG",
	})
	if res.Message.Number != "222" {
		t.Errorf("Number = %q, want 222", res.Message.Number)
	}
}

func TestParse_UnknownAndMisplacedSections(t *testing.T) {
	res := parseLines(t, []string{
		"garbage before container",
		"BEGIN:VCARD",
		"TEL:999",
		"END:VCARD",
		"BEGIN:VMSG",
		"BEGIN:VCALENDAR",
		"SUMMARY:ignored",
		"END:VCALENDAR",
		"BEGIN:VBODY",
		"not a body",
		"END:VBODY",
		"BEGIN:VENV",
		"BEGIN:VBODY",
		"text",
		"END:VBODY",
		"END:VENV",
		"END:VMSG",
		"BEGIN:VMSG",
		"TEL:after",
	})

	msg := res.Message
	if msg.Number != "" {
		t.Errorf("Number = %q, sections outside the container must be ignored", msg.Number)
	}
	if msg.Body != "text" {
		t.Errorf("Body = %q, want text", msg.Body)
	}
	if !res.Complete {
		t.Errorf("expected complete container, diagnostics: %v", res.Diagnostics)
	}
	for _, kind := range []DiagnosticKind{DiagUnexpectedLine, DiagUnknownSection, DiagMisplacedSection} {
		if !hasDiagnostic(res.Diagnostics, kind) {
			t.Errorf("expected %s diagnostic in %v", kind, res.Diagnostics)
		}
	}
	if hasDiagnostic(res.Diagnostics, DiagMismatchedEnd) {
		t.Errorf("END of an ignored section must not count as mismatched: %v", res.Diagnostics)
	}
}

func TestParse_MismatchedEndClosesCurrentSection(t *testing.T) {
	res := parseLines(t, []string{
		"BEGIN:VMSG",
		"BEGIN:VENV",
		"BEGIN:VBODY",
		"first",
		"END:VENV",
		"TEL:777",
		"BEGIN:VBODY",
		"second",
		"END:VBODY",
		"END:VENV",
		"END:VMSG",
	})

	if res.Message.Body != "firstsecond" {
		t.Errorf("Body = %q, want firstsecond", res.Message.Body)
	}
	if res.Message.Number != "777" {
		t.Errorf("Number = %q, want 777", res.Message.Number)
	}
	if !hasDiagnostic(res.Diagnostics, DiagMismatchedEnd) {
		t.Error("expected mismatched end diagnostic")
	}
	if !res.Complete {
		t.Errorf("expected complete container, diagnostics: %v", res.Diagnostics)
	}
}

func TestParse_NoContainer(t *testing.T) {
	res := parseLines(t, []string{"hello", "TEL:1"})
	if res.Message.Number != "" || res.Message.Body != "" || !res.Message.Timestamp.IsZero() {
		t.Errorf("expected empty record, got %+v", res.Message)
	}
	if res.Complete {
		t.Error("expected incomplete result")
	}
	if !hasDiagnostic(res.Diagnostics, DiagMissingContainer) {
		t.Error("expected missing container diagnostic")
	}
}

func TestParse_EmptyInput(t *testing.T) {
	res, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if res.Complete || !res.Message.Partial() {
		t.Errorf("expected an empty partial record, got %+v", res)
	}
}

func TestParse_DecodeFailure(t *testing.T) {
	data := append(encodeLines(t, "BEGIN:VMSG", "TEL:1"), 0x41)
	_, err := Parse(bytes.NewReader(data))
	if !errors.Is(err, ErrTruncatedCodeUnit) {
		t.Fatalf("Parse() error = %v, want ErrTruncatedCodeUnit", err)
	}
}

func TestParse_OddByteAfterContainer(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{name: "short", lines: []string{"BEGIN:VMSG", "X-MESSAGE-TYPE:DELIVER", "END:VMSG"}},
		{name: "beyond read buffer", lines: []string{"BEGIN:VMSG", "X-MESSAGE-TYPE:DELIVER", "END:VMSG", strings.Repeat("x", 8192)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append(encodeLines(t, tt.lines...), 0x41)
			res, err := Parse(bytes.NewReader(data))
			if !errors.Is(err, ErrTruncatedCodeUnit) {
				t.Fatalf("Parse() error = %v, want ErrTruncatedCodeUnit", err)
			}
			if res.Message.Inbox {
				t.Error("expected no record on decode failure")
			}
		})
	}
}

func TestDiagnostic_String(t *testing.T) {
	d := Diagnostic{Line: 7, Section: SectionEnvelope, Kind: DiagMismatchedEnd, Text: "END:VBODY"}
	if got := d.String(); got != "line 7 (envelope): mismatched_end: END:VBODY" {
		t.Errorf("String() = %q", got)
	}
}

func BenchmarkParse(b *testing.B) {
	data := encodeLines(b,
		"BEGIN:VMSG", "VERSION:1.1", "X-NOK-DT:20120306T173732Z", "X-MESSAGE-TYPE:DELIVER",
		"BEGIN:VCARD", "TEL:+491701234567", "END:VCARD",
		"BEGIN:VENV", "BEGIN:VBODY", "Date:06.03.2012 17:37:32", strings.Repeat("lorem ipsum ", 12), "END:VBODY", "END:VENV",
		"END:VMSG",
	)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}
