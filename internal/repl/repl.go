// Package repl implements the interactive retouching shell. Commands place
// and edit hotspots on the working image and drive processing through the
// engine.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/arjun/pinpoint/internal/cost"
	"github.com/arjun/pinpoint/internal/display"
	"github.com/arjun/pinpoint/internal/engine"
	"github.com/arjun/pinpoint/internal/export"
	"github.com/arjun/pinpoint/internal/imageio"
	"github.com/arjun/pinpoint/internal/session"
	"github.com/arjun/pinpoint/pkg/models"
)

type REPL struct {
	in        io.Reader
	out       io.Writer
	err       io.Writer
	engine    *engine.Engine
	fetcher   *imageio.Fetcher
	displayer *display.Displayer
	saver     *export.Saver
	calc      *cost.Calculator
	tracker   *cost.Tracker
	store     *session.Store
	provider  models.ProviderType
	model     string
	commands  map[string]Command
	running   bool
}

type Config struct {
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	Engine    *engine.Engine
	Fetcher   *imageio.Fetcher
	Displayer *display.Displayer
	Saver     *export.Saver
	Store     *session.Store
	Provider  models.ProviderType
	Model     string
}

func New(cfg *Config) *REPL {
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = imageio.NewFetcher()
	}
	r := &REPL{
		in:        cfg.In,
		out:       cfg.Out,
		err:       cfg.Err,
		engine:    cfg.Engine,
		fetcher:   fetcher,
		displayer: cfg.Displayer,
		saver:     cfg.Saver,
		calc:      cost.NewCalculator(),
		tracker:   cost.NewTracker(),
		store:     cfg.Store,
		provider:  cfg.Provider,
		model:     cfg.Model,
		commands:  make(map[string]Command),
	}
	r.registerCommands()
	return r
}

func (r *REPL) Run(ctx context.Context) error {
	r.running = true
	r.printWelcome()

	scanner := bufio.NewScanner(r.in)
	for r.running {
		r.printPrompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.err, "Error: %v\n", err)
		}
	}

	return scanner.Err()
}

func (r *REPL) execute(ctx context.Context, line string) error {
	parts := parseCommand(line)
	if len(parts) == 0 {
		return nil
	}

	cmdName := strings.ToLower(parts[0])
	args := parts[1:]

	cmd, ok := r.commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmdName)
	}

	return cmd.Execute(ctx, r, args)
}

func (r *REPL) Stop() {
	r.running = false
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "pinpoint interactive mode")
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'quit' to exit.")
	fmt.Fprintln(r.out)
}

func (r *REPL) printPrompt() {
	st := r.engine.State()
	if len(st.Hotspots) > 0 {
		noun := "points"
		if len(st.Hotspots) == 1 {
			noun = "point"
		}
		fmt.Fprintf(r.out, "pinpoint [%s] (%d %s)> ", r.model, len(st.Hotspots), noun)
	} else {
		fmt.Fprintf(r.out, "pinpoint [%s]> ", r.model)
	}
}

func parseCommand(line string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)

	for _, ch := range line {
		switch {
		case ch == '"' || ch == '\'':
			if inQuotes && ch == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else if !inQuotes {
				inQuotes = true
				quoteChar = ch
			} else {
				current.WriteRune(ch)
			}
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
