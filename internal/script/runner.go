package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arjun/pinpoint/internal/engine"
	"github.com/arjun/pinpoint/internal/geometry"
	"github.com/arjun/pinpoint/internal/session"
	"github.com/arjun/pinpoint/pkg/models"
)

// percentBounds makes pixel and percent coordinates coincide, so scripted
// percent positions pass through the click path unchanged.
var percentBounds = geometry.Bounds{Width: 100, Height: 100}

// Result is the outcome of placing one scripted edit point.
type Result struct {
	Index    int
	Prompt   string
	Error    error
	Duration time.Duration
}

type Options struct {
	StopOnError bool
	DelayMs     int
}

// Runner feeds scripted edit points through the engine, processing a batch
// whenever the phase fills up and once more at the end.
type Runner struct {
	engine *engine.Engine
	out    io.Writer
	err    io.Writer

	processed []session.ProcessedImage
}

func NewRunner(eng *engine.Engine, out, errOut io.Writer) *Runner {
	return &Runner{engine: eng, out: out, err: errOut}
}

// Processed returns the history entries produced by the run, in order.
func (r *Runner) Processed() []session.ProcessedImage {
	return r.processed
}

func (r *Runner) Run(ctx context.Context, items []Item, opts *Options) ([]Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	results := make([]Result, len(items))
	total := len(items)
	pending := 0

	for i, item := range items {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		result := r.place(ctx, item, &pending, i+1, total)
		results[i] = result

		if result.Error != nil && opts.StopOnError {
			return results, fmt.Errorf("stopped at point %d: %w", i+1, result.Error)
		}

		if opts.DelayMs > 0 && i < len(items)-1 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(time.Duration(opts.DelayMs) * time.Millisecond):
			}
		}
	}

	if pending > 0 {
		if err := r.process(ctx); err != nil {
			return results, err
		}
	}
	return results, nil
}

func (r *Runner) place(ctx context.Context, item Item, pending *int, current, total int) Result {
	start := time.Now()
	result := Result{Index: item.Index, Prompt: item.Prompt}

	r.printf("[%d/%d] Placing edit at (%.1f%%, %.1f%%): %q\n",
		current, total, item.X, item.Y, truncate(item.Prompt, 50))

	h, err := r.engine.AddHotspotAt(geometry.Point{X: item.X, Y: item.Y}, percentBounds)
	if errors.Is(err, session.ErrLimitReached) && *pending > 0 {
		// phase is full; process it and retry once
		if perr := r.process(ctx); perr != nil {
			result.Error = perr
			result.Duration = time.Since(start)
			return result
		}
		*pending = 0
		h, err = r.engine.AddHotspotAt(geometry.Point{X: item.X, Y: item.Y}, percentBounds)
	}
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		r.errorf("       Error: %v\n", err)
		return result
	}

	if err := r.engine.UpdatePrompt(h.ID, item.Prompt); err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}
	if item.Reference != "" {
		if err := r.engine.AttachReference(h.ID, models.ReferenceImage{URL: item.Reference}); err != nil {
			result.Error = err
			result.Duration = time.Since(start)
			return result
		}
	}

	*pending++
	result.Duration = time.Since(start)
	return result
}

func (r *Runner) process(ctx context.Context) error {
	r.printf("       Processing batch...\n")
	entry, err := r.engine.Submit(ctx)
	if err != nil {
		r.errorf("       Error: %v\n", err)
		return err
	}
	r.processed = append(r.processed, entry)
	r.printf("       Processed: %s\n", entry.ID)
	return nil
}

func (r *Runner) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Runner) errorf(format string, args ...interface{}) {
	fmt.Fprintf(r.err, format, args...)
}

func (r *Runner) PrintSummary(results []Result) {
	var successful, failed int
	var failures []Result

	for _, res := range results {
		if res.Error != nil {
			failed++
			failures = append(failures, res)
		} else {
			successful++
		}
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Summary:")
	fmt.Fprintf(r.out, "  Placed: %d/%d edit points\n", successful, len(results))
	fmt.Fprintf(r.out, "  Processed batches: %d\n", len(r.processed))
	if failed > 0 {
		fmt.Fprintf(r.out, "  Failed: %d\n", failed)
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, "Errors:")
		for _, f := range failures {
			fmt.Fprintf(r.out, "  [%d] %q: %v\n", f.Index, truncate(f.Prompt, 40), f.Error)
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
