package vmsg

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dhcgn/vmg-to-imap/filter"
	"github.com/dhcgn/vmg-to-imap/model"
	"github.com/dhcgn/vmg-to-imap/runner"
	"github.com/dhcgn/vmg-to-imap/worker"
)

type Options struct {
	Root          string
	Paths         []string
	Extension     string
	Workers       int
	Location      *time.Location
	BodySeparator string
	Filter        filter.Options
}

type Reader interface {
	Stream(ctx context.Context, out chan<- model.Envelope) error
}

func NewReader(opts Options, logger *slog.Logger) (Reader, error) {
	if strings.TrimSpace(opts.Root) == "" && len(opts.Paths) == 0 {
		return nil, fmt.Errorf("vmg source is empty")
	}

	f, err := filter.New(opts.Filter)
	if err != nil {
		return nil, err
	}

	parseOpts := []Option{WithLocation(opts.Location)}
	if opts.BodySeparator != "" {
		parseOpts = append(parseOpts, WithBodySeparator(opts.BodySeparator))
	}

	return &fileReader{
		opts:      opts,
		filter:    f,
		logger:    logger,
		parseOpts: parseOpts,
	}, nil
}

type fileReader struct {
	opts      Options
	filter    *filter.Filter
	logger    *slog.Logger
	parseOpts []Option
}

// Stream parses every file on a bounded pool and sends one envelope per
// file to out. A file that cannot be read becomes an error envelope; the
// remaining files are still processed.
func (f *fileReader) Stream(ctx context.Context, out chan<- model.Envelope) error {
	paths := f.opts.Paths
	if len(paths) == 0 {
		discovered, err := Discover(f.opts.Root, f.opts.Extension)
		if err != nil {
			return err
		}
		paths = discovered
	}

	pool := worker.NewPool(f.opts.Workers)
	if f.logger != nil {
		f.logger.Debug("vmg files discovered", "root", f.opts.Root, "count", len(paths), "workers", pool.Workers())
	}

	pool.Map(len(paths), func(i int) {
		f.process(ctx, out, paths[i])
	})

	return ctx.Err()
}

func (f *fileReader) process(ctx context.Context, out chan<- model.Envelope, path string) {
	if ctx.Err() != nil {
		return
	}

	res, err := ParseFile(path, f.parseOpts...)
	if err != nil {
		f.emitError(ctx, out, path, err)
		return
	}

	if f.logger != nil {
		for _, d := range res.Diagnostics {
			f.logger.Debug("vmg diagnostic", append([]any{"path", path}, d.LogAttrs()...)...)
		}
		if !res.Complete {
			f.logger.Debug("vmg container not closed, using partial record", "path", path)
		}
	}

	if !f.filter.AllowsMessage(res.Message) {
		if f.logger != nil {
			f.logger.Debug("vmg message filtered", "path", path, "number", res.Message.Number)
		}
		return
	}

	_ = f.emitEnvelope(ctx, out, model.Envelope{Message: res.Message})
}

func (f *fileReader) emitError(ctx context.Context, out chan<- model.Envelope, path string, err error) {
	if f.logger != nil {
		f.logger.Error("vmg parse failed", "path", path, "err", err)
	}
	_ = f.emitEnvelope(ctx, out, model.Envelope{Message: model.Message{ID: path, Path: path}, Err: err})
}

func (f *fileReader) emitEnvelope(ctx context.Context, out chan<- model.Envelope, env model.Envelope) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- env:
		return nil
	}
}

// ReadAll parses all files described by opts and returns the records
// ordered by path together with the per-file failures.
func ReadAll(ctx context.Context, opts Options, logger *slog.Logger) ([]model.Message, []error, error) {
	reader, err := NewReader(opts, logger)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan model.Envelope, 32)
	done := make(chan error, 1)
	go func() {
		done <- reader.Stream(ctx, out)
		close(out)
	}()

	var (
		messages []model.Message
		failures []error
	)
	for env := range out {
		if env.Err != nil {
			failures = append(failures, env.Err)
			continue
		}
		messages = append(messages, env.Message)
	}

	if err := <-done; err != nil {
		return nil, nil, err
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Path < messages[j].Path
	})
	return messages, failures, nil
}

type Producer struct {
	reader Reader
	runner *runner.Runner
}

func NewProducer(opts Options, r *runner.Runner, logger *slog.Logger) (*Producer, error) {
	reader, err := NewReader(opts, logger)
	if err != nil {
		return nil, err
	}
	producer := &Producer{reader: reader, runner: r}
	r.AddStage("vmg", producer.run)
	return producer, nil
}

func (p *Producer) run(ctx context.Context) error {
	defer p.runner.CloseMessages()
	return p.reader.Stream(ctx, p.runner.MessageWriter())
}
