package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/dhcgn/vmg-to-imap/stats"
)

// Bar manages a progress bar for tracking vMessage file processing.
type Bar struct {
	pb             *pterm.ProgressbarPrinter
	total          int
	alreadyDone    int
	currentScanned int
	mu             sync.Mutex
	enabled        bool
	stopped        bool
}

// New creates a new progress bar if logLevel is "info".
func New(total int, alreadyDone int, logLevel string) *Bar {
	enabled := logLevel == "info" && total > 0

	bar := &Bar{
		total:       total,
		alreadyDone: alreadyDone,
		enabled:     enabled,
	}

	if enabled {
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Reading vMessage files").
			Start()

		bar.pb = pb

		pterm.Info.Printf("vMessage files found: %d\n", total)
		pterm.Info.Printf("Already archived: %d\n", alreadyDone)
		pterm.Println()
	}

	return bar
}

// Enabled reports whether the bar renders anything.
func (b *Bar) Enabled() bool {
	return b != nil && b.enabled
}

// Update advances the bar for every file the reader finished, including
// files that failed to parse.
func (b *Bar) Update(evt stats.Event) {
	if !b.Enabled() || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}

	switch evt.Type {
	case stats.EventTypeScanned:
		b.advance(evt.MessageID)
	case stats.EventTypeError:
		if evt.Stage == stats.StageVmg && evt.MessageID != "" {
			b.advance(evt.MessageID)
		}
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	}
}

func (b *Bar) advance(file string) {
	b.currentScanned++
	if b.pb.Current < b.total {
		b.pb.Increment()
	}
	if file != "" {
		display := file
		if len(display) > 40 {
			display = "..." + display[len(display)-37:]
		}
		b.pb.UpdateTitle("Reading: " + display)
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.Enabled() || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.stopped = true

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}

	b.pb.Stop()
	pterm.Success.Println("Processing complete!")
}

// ProgressReporter replaces the plain stats reporter when the bar is shown.
// It owns the only subscription to the event stream and feeds both the bar
// and the summary collector from it.
type ProgressReporter struct {
	bar       *Bar
	collector *stats.Collector
	logger    *slog.Logger
	started   time.Time
}

// NewProgressReporter subscribes to stream. With a disabled bar it falls
// back to the plain stats reporter so events are always drained.
func NewProgressReporter(stream stats.EventStream, bar *Bar, logger *slog.Logger) *ProgressReporter {
	reporter := &ProgressReporter{
		bar:       bar,
		collector: stats.NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}

	if bar.Enabled() {
		stream.SubscribeStats("progress", reporter.consume)
	} else {
		stats.NewReporter(stream, logger)
	}

	return reporter
}

func (pr *ProgressReporter) consume(ctx context.Context, events <-chan stats.Event) error {
	defer pr.bar.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				pr.bar.Stop()
				pr.printSummary()
				return nil
			}
			pr.collector.Record(evt)
			pr.bar.Update(evt)
		}
	}
}

func (pr *ProgressReporter) printSummary() {
	summary := pr.collector.Snapshot()
	duration := time.Since(pr.started)

	pterm.Println()
	pterm.DefaultSection.Println("Summary Statistics")
	pterm.Info.Printf("Duration: %v\n", duration)
	pterm.Info.Printf("Scanned: %d\n", summary.Scanned)
	pterm.Info.Printf("Partial (missing number or date): %d\n", summary.Partial)
	pterm.Info.Printf("Enqueued: %d\n", summary.Enqueued)
	pterm.Info.Printf("Uploaded: %d\n", summary.Uploaded)
	pterm.Info.Printf("Dry-run uploaded: %d\n", summary.DryRunUploaded)
	pterm.Info.Printf("Duplicates (skipped): %d\n", summary.Duplicates)
	pterm.Info.Printf("Errors: %d\n", summary.Errors)
	if summary.LastError != nil {
		pterm.Error.Printf("Last error: %v\n", summary.LastError)
	}

	if pr.logger != nil {
		pr.logger.Debug("stats summary", append(summary.LogAttrs(), "duration", duration)...)
	}
}
