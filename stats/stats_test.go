package stats

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCollector_Run(t *testing.T) {
	events := make(chan Event, 16)
	lastErr := errors.New("broken file")

	events <- Event{Stage: StageVmg, Type: EventTypeScanned}
	events <- Event{Stage: StageVmg, Type: EventTypeScanned}
	events <- Event{Stage: StageVmg, Type: EventTypePartial}
	events <- Event{Stage: StageVmg, Type: EventTypeDuplicate}
	events <- Event{Stage: StageVmg, Type: EventTypeEnqueued}
	events <- Event{Stage: StageIMAP, Type: EventTypeUploaded}
	events <- Event{Stage: StageVmg, Type: EventTypeError, Err: lastErr}
	close(events)

	c := NewCollector()
	c.Run(context.Background(), events)

	s := c.Snapshot()
	if s.Scanned != 2 || s.Partial != 1 || s.Duplicates != 1 || s.Enqueued != 1 || s.Uploaded != 1 || s.Errors != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if !errors.Is(s.LastError, lastErr) {
		t.Errorf("LastError = %v, want %v", s.LastError, lastErr)
	}
}

func TestSummary_LogAttrs(t *testing.T) {
	attrs := Summary{Scanned: 3, LastError: errors.New("boom")}.LogAttrs()
	if len(attrs)%2 != 0 {
		t.Fatalf("expected key/value pairs, got %d items", len(attrs))
	}
	if attrs[len(attrs)-2] != "lastError" || attrs[len(attrs)-1] != "boom" {
		t.Errorf("unexpected trailing attrs: %v", attrs[len(attrs)-2:])
	}
}

func TestTopN(t *testing.T) {
	counts := map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}

	got := TopN(counts, 3)
	want := []Count{{"c", 5}, {"a", 2}, {"b", 2}}
	if len(got) != len(want) {
		t.Fatalf("TopN() returned %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TopN()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	if all := TopN(counts, -1); len(all) != 4 {
		t.Errorf("TopN(-1) returned %d items, want 4", len(all))
	}
}

func TestPrettyPrintTop(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrintTop(&buf, map[string]int{"": 3, "+49170": 1}, 10)

	out := buf.String()
	if !strings.Contains(out, "1. (none) (3)") {
		t.Errorf("missing placeholder line in %q", out)
	}
	if !strings.Contains(out, "2. +49170 (1)") {
		t.Errorf("missing number line in %q", out)
	}
}
