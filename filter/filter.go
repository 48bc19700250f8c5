package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/dhcgn/vmg-to-imap/model"
)

// Options captures the filtering configuration.
type Options struct {
	IncludeNumber []string
	IncludeBody   []string
	ExcludeNumber []string
	ExcludeBody   []string
}

// Active reports whether any pattern is configured.
func (o Options) Active() bool {
	return len(o.IncludeNumber) > 0 || len(o.IncludeBody) > 0 || len(o.ExcludeNumber) > 0 || len(o.ExcludeBody) > 0
}

// Filter holds compiled regex patterns for filtering messages.
type Filter struct {
	includeMode   bool
	excludeMode   bool
	includeNumber []*regexp.Regexp
	includeBody   []*regexp.Regexp
	excludeNumber []*regexp.Regexp
	excludeBody   []*regexp.Regexp

	mu   sync.Mutex
	hits map[*regexp.Regexp]int
}

// Stats reports how often each pattern matched.
type Stats struct {
	IncludeNumberPatterns []string
	IncludeNumberHits     map[string]int
	IncludeBodyPatterns   []string
	IncludeBodyHits       map[string]int
	ExcludeNumberPatterns []string
	ExcludeNumberHits     map[string]int
	ExcludeBodyPatterns   []string
	ExcludeBodyHits       map[string]int
}

// New creates a new Filter from the provided options.
func New(opts Options) (*Filter, error) {
	includeNumber, err := compilePatterns(opts.IncludeNumber)
	if err != nil {
		return nil, fmt.Errorf("compile include-number pattern: %w", err)
	}
	includeBody, err := compilePatterns(opts.IncludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile include-body pattern: %w", err)
	}
	excludeNumber, err := compilePatterns(opts.ExcludeNumber)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-number pattern: %w", err)
	}
	excludeBody, err := compilePatterns(opts.ExcludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-body pattern: %w", err)
	}

	includeActive := len(includeNumber) > 0 || len(includeBody) > 0
	excludeActive := len(excludeNumber) > 0 || len(excludeBody) > 0
	if includeActive && excludeActive {
		return nil, fmt.Errorf("include and exclude filters are mutually exclusive")
	}

	return &Filter{
		includeMode:   includeActive,
		excludeMode:   excludeActive,
		includeNumber: includeNumber,
		includeBody:   includeBody,
		excludeNumber: excludeNumber,
		excludeBody:   excludeBody,
		hits:          make(map[*regexp.Regexp]int),
	}, nil
}

// Allows returns true if a message with this number and body passes the filter criteria.
func (f *Filter) Allows(number, body string) bool {
	if f.includeMode {
		numberMatch := f.matchAny(f.includeNumber, number)
		bodyMatch := f.matchAny(f.includeBody, body)
		return numberMatch || bodyMatch
	}

	if f.excludeMode {
		numberMatch := f.matchAny(f.excludeNumber, number)
		bodyMatch := f.matchAny(f.excludeBody, body)
		if numberMatch || bodyMatch {
			return false
		}
	}

	return true
}

// AllowsMessage applies Allows to a parsed record.
func (f *Filter) AllowsMessage(msg model.Message) bool {
	return f.Allows(msg.Number, msg.Body)
}

// GetStats returns a snapshot of the pattern hit counters.
func (f *Filter) GetStats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	var s Stats
	s.IncludeNumberPatterns, s.IncludeNumberHits = f.snapshot(f.includeNumber)
	s.IncludeBodyPatterns, s.IncludeBodyHits = f.snapshot(f.includeBody)
	s.ExcludeNumberPatterns, s.ExcludeNumberHits = f.snapshot(f.excludeNumber)
	s.ExcludeBodyPatterns, s.ExcludeBodyHits = f.snapshot(f.excludeBody)
	return s
}

func (f *Filter) snapshot(patterns []*regexp.Regexp) ([]string, map[string]int) {
	names := make([]string, 0, len(patterns))
	hits := make(map[string]int, len(patterns))
	for _, re := range patterns {
		names = append(names, re.String())
		hits[re.String()] += f.hits[re]
	}
	return names, hits
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// matchAny evaluates every pattern so that each one's hit counter stays accurate.
func (f *Filter) matchAny(patterns []*regexp.Regexp, text string) bool {
	matched := false
	for _, re := range patterns {
		if re.MatchString(text) {
			matched = true
			f.mu.Lock()
			f.hits[re]++
			f.mu.Unlock()
		}
	}
	return matched
}
