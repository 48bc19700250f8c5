// Package vmsg reads vMessage (.vmg) files, the nested BEGIN:/END: text
// container some phones use to store one SMS per file.
package vmsg

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dhcgn/vmg-to-imap/model"
)

const (
	beginPrefix = "BEGIN:"
	endPrefix   = "END:"
	datePrefix  = "Date:"

	fieldMessageType = "X-MESSAGE-TYPE"
	fieldNokiaDate   = "X-NOK-DT"
	fieldVersion     = "VERSION"
	fieldTel         = "TEL"

	messageTypeDeliver = "DELIVER"
	messageTypeSubmit  = "SUBMIT"
)

// Option customizes Parse.
type Option func(*parseOptions)

type parseOptions struct {
	location  *time.Location
	separator string
}

// WithLocation sets the zone used for dates that carry none (VBODY Date:).
func WithLocation(loc *time.Location) Option {
	return func(o *parseOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithBodySeparator joins body text lines with sep instead of concatenating
// them directly.
func WithBodySeparator(sep string) Option {
	return func(o *parseOptions) {
		o.separator = sep
	}
}

// Result is the outcome of parsing one vMessage stream.
type Result struct {
	Message     model.Message
	Diagnostics []Diagnostic
	// Complete is true when the container was closed by its own END:VMSG.
	Complete bool
}

// Parse reads one vMessage from r. Malformed or unknown lines never fail the
// parse; they are recorded in Result.Diagnostics. An error is returned only
// when r cannot be read or decoded, in which case no record is produced.
func Parse(r io.Reader, opts ...Option) (Result, error) {
	o := parseOptions{location: time.Local}
	for _, opt := range opts {
		opt(&o)
	}

	p := &parser{
		lines: NewLineSource(r),
		opts:  o,
		rec:   &builder{separator: o.separator},
	}
	p.run()

	if err := p.lines.Drain(); err != nil {
		return Result{}, fmt.Errorf("read vmsg: %w", err)
	}

	return Result{
		Message:     p.rec.Message(),
		Diagnostics: p.diags,
		Complete:    p.complete,
	}, nil
}

type parser struct {
	lines    *LineSource
	opts     parseOptions
	rec      *builder
	diags    []Diagnostic
	complete bool
}

// run waits for the outer container and stops once it closes.
func (p *parser) run() {
	for {
		line, ok := p.lines.Next()
		if !ok {
			p.diag(SectionNone, DiagMissingContainer, "no BEGIN:"+SectionContainer.Marker()+" found")
			return
		}

		marker, isBegin := strings.CutPrefix(line, beginPrefix)
		if !isBegin {
			p.diag(SectionNone, DiagUnexpectedLine, line)
			continue
		}
		marker = strings.TrimSpace(marker)
		kind, known := sectionForMarker(marker)
		if known && SectionNone.allows(kind) {
			p.complete = p.section(kind)
			return
		}
		p.diag(SectionNone, unexpectedSectionKind(known), marker)
	}
}

// section consumes lines until the END marker of kind, a mismatched END
// marker or the end of input. It reports whether kind's own END closed it.
func (p *parser) section(kind Section) bool {
	var ignored []string

	for {
		line, ok := p.lines.Next()
		if !ok {
			p.diag(kind, DiagUnclosedSection, "input ended before "+endPrefix+kind.Marker())
			return false
		}

		if marker, isEnd := strings.CutPrefix(line, endPrefix); isEnd {
			marker = strings.TrimSpace(marker)
			if marker == kind.Marker() {
				return true
			}
			if i := lastIndex(ignored, marker); i >= 0 {
				ignored = append(ignored[:i], ignored[i+1:]...)
				continue
			}
			p.diag(kind, DiagMismatchedEnd, line)
			return false
		}

		if marker, isBegin := strings.CutPrefix(line, beginPrefix); isBegin {
			marker = strings.TrimSpace(marker)
			child, known := sectionForMarker(marker)
			if known && kind.allows(child) {
				p.section(child)
				continue
			}
			p.diag(kind, unexpectedSectionKind(known), marker)
			ignored = append(ignored, marker)
			continue
		}

		p.field(kind, line)
	}
}

func (p *parser) field(kind Section, line string) {
	if kind == SectionBody {
		if value, ok := strings.CutPrefix(line, datePrefix); ok {
			p.timestamp(kind, value, FormatDotted)
			return
		}
		p.rec.AppendText(line)
		return
	}

	name, value, found := strings.Cut(line, ":")
	if !found {
		p.diag(kind, DiagUnexpectedLine, line)
		return
	}
	// TEL;TYPE=CELL:... carries parameters after the property name.
	name, _, _ = strings.Cut(name, ";")
	name = strings.ToUpper(strings.TrimSpace(name))

	switch {
	case name == fieldVersion:
		p.diag(kind, DiagVersion, strings.TrimSpace(value))
	case kind == SectionContainer && name == fieldMessageType:
		p.direction(kind, value)
	case kind == SectionContainer && name == fieldNokiaDate:
		p.timestamp(kind, value, FormatCompact)
	case (kind == SectionAddress || kind == SectionEnvelope) && name == fieldTel:
		p.rec.SetNumber(strings.TrimSpace(value))
	default:
		p.diag(kind, DiagUnexpectedLine, line)
	}
}

func (p *parser) direction(kind Section, value string) {
	switch strings.TrimSpace(value) {
	case messageTypeDeliver:
		p.rec.SetDirection(true)
	case messageTypeSubmit:
		p.rec.SetDirection(false)
	default:
		p.diag(kind, DiagInvalidDirection, value)
	}
}

func (p *parser) timestamp(kind Section, value string, format TimestampFormat) {
	t, err := ParseTimestamp(value, format, p.opts.location)
	if err != nil {
		p.diag(kind, DiagInvalidTimestamp, err.Error())
		return
	}
	if !p.rec.SetTimestampIfAbsent(t) {
		p.diag(kind, DiagIgnoredTimestamp, strings.TrimSpace(value))
	}
}

func (p *parser) diag(kind Section, diagKind DiagnosticKind, text string) {
	p.diags = append(p.diags, Diagnostic{
		Line:    p.lines.Line(),
		Section: kind,
		Kind:    diagKind,
		Text:    text,
	})
}

func unexpectedSectionKind(known bool) DiagnosticKind {
	if known {
		return DiagMisplacedSection
	}
	return DiagUnknownSection
}

func lastIndex(items []string, item string) int {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i] == item {
			return i
		}
	}
	return -1
}
