package repl

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arjun/pinpoint/internal/export"
	"github.com/arjun/pinpoint/internal/geometry"
	"github.com/arjun/pinpoint/pkg/models"
)

type Command interface {
	Name() string
	Aliases() []string
	Description() string
	Usage() string
	Execute(ctx context.Context, r *REPL, args []string) error
}

// percentBounds maps typed percent coordinates straight through the click
// path without scaling.
var percentBounds = geometry.Bounds{Width: 100, Height: 100}

func (r *REPL) registerCommands() {
	for _, cmd := range allCommands() {
		r.commands[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases() {
			r.commands[alias] = cmd
		}
	}
}

func allCommands() []Command {
	return []Command{
		&OpenCommand{},
		&AddCommand{},
		&PromptCommand{},
		&MoveCommand{},
		&RemoveCommand{},
		&RefCommand{},
		&UnrefCommand{},
		&PointsCommand{},
		&ProcessCommand{},
		&HistoryCommand{},
		&RevertCommand{},
		&ResetCommand{},
		&StatusCommand{},
		&SaveCommand{},
		&ShowCommand{},
		&CostCommand{},
		&WorkspaceCommand{},
		&HelpCommand{},
		&QuitCommand{},
	}
}

// OpenCommand loads a new base image from disk or from an https URL.
type OpenCommand struct{}

func (c *OpenCommand) Name() string        { return "open" }
func (c *OpenCommand) Aliases() []string   { return []string{"o", "load"} }
func (c *OpenCommand) Description() string { return "Load an image to retouch" }
func (c *OpenCommand) Usage() string       { return "open <path or https URL>" }

func (c *OpenCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	src := args[0]
	var data []byte
	var url string

	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		fetched, err := r.fetcher.Fetch(ctx, src)
		if err != nil {
			return fmt.Errorf("failed to fetch image: %w", err)
		}
		data = fetched
		url = src
	} else {
		read, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		data = read
	}

	if err := r.engine.LoadImage(data, url); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Loaded %s (%d bytes)\n", src, len(data))
	return nil
}

// AddCommand places a hotspot at percent coordinates.
type AddCommand struct{}

func (c *AddCommand) Name() string        { return "add" }
func (c *AddCommand) Aliases() []string   { return []string{"a"} }
func (c *AddCommand) Description() string { return "Place an edit point at x,y (percent of image)" }
func (c *AddCommand) Usage() string       { return "add <x> <y>" }

func (c *AddCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	x, y, err := parseXY(args[0], args[1])
	if err != nil {
		return err
	}

	h, err := r.engine.AddHotspotAt(geometry.Point{X: x, Y: y}, percentBounds)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Added point %d at (%.2f, %.2f)\n", h.ID, h.X, h.Y)
	fmt.Fprintf(r.out, "Set its instruction with: prompt %d <text>\n", h.ID)
	return nil
}

// PromptCommand sets the instruction text of a hotspot.
type PromptCommand struct{}

func (c *PromptCommand) Name() string        { return "prompt" }
func (c *PromptCommand) Aliases() []string   { return []string{"p"} }
func (c *PromptCommand) Description() string { return "Set the instruction for an edit point" }
func (c *PromptCommand) Usage() string       { return "prompt <id> <text>" }

func (c *PromptCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	text := strings.Join(args[1:], " ")
	if err := r.engine.UpdatePrompt(id, text); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Point %d: %q\n", id, truncate(text, 60))
	return nil
}

// MoveCommand repositions a hotspot.
type MoveCommand struct{}

func (c *MoveCommand) Name() string        { return "move" }
func (c *MoveCommand) Aliases() []string   { return []string{"mv"} }
func (c *MoveCommand) Description() string { return "Move an edit point to x,y (percent of image)" }
func (c *MoveCommand) Usage() string       { return "move <id> <x> <y>" }

func (c *MoveCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	x, y, err := parseXY(args[1], args[2])
	if err != nil {
		return err
	}

	h, err := r.engine.MoveHotspot(id, x, y)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Point %d moved to (%.2f, %.2f)\n", h.ID, h.X, h.Y)
	return nil
}

// RemoveCommand deletes a hotspot.
type RemoveCommand struct{}

func (c *RemoveCommand) Name() string        { return "remove" }
func (c *RemoveCommand) Aliases() []string   { return []string{"rm", "del"} }
func (c *RemoveCommand) Description() string { return "Remove an edit point" }
func (c *RemoveCommand) Usage() string       { return "remove <id>" }

func (c *RemoveCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	if err := r.engine.RemoveHotspot(id); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Removed point %d\n", id)
	return nil
}

// RefCommand attaches a hosted reference image to a hotspot.
type RefCommand struct{}

func (c *RefCommand) Name() string        { return "ref" }
func (c *RefCommand) Aliases() []string   { return nil }
func (c *RefCommand) Description() string { return "Attach a reference image URL to an edit point" }
func (c *RefCommand) Usage() string       { return "ref <id> <url>" }

func (c *RefCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	if err := r.engine.AttachReference(id, models.ReferenceImage{URL: args[1]}); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Attached reference to point %d\n", id)
	return nil
}

// UnrefCommand detaches the reference image from a hotspot.
type UnrefCommand struct{}

func (c *UnrefCommand) Name() string        { return "unref" }
func (c *UnrefCommand) Aliases() []string   { return nil }
func (c *UnrefCommand) Description() string { return "Detach the reference image from an edit point" }
func (c *UnrefCommand) Usage() string       { return "unref <id>" }

func (c *UnrefCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	if err := r.engine.DetachReference(id); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Detached reference from point %d\n", id)
	return nil
}

// PointsCommand lists the current hotspots.
type PointsCommand struct{}

func (c *PointsCommand) Name() string        { return "points" }
func (c *PointsCommand) Aliases() []string   { return []string{"ls", "list"} }
func (c *PointsCommand) Description() string { return "List the current edit points" }
func (c *PointsCommand) Usage() string       { return "points" }

func (c *PointsCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	st := r.engine.State()
	if len(st.Hotspots) == 0 {
		fmt.Fprintln(r.out, "No edit points placed")
		return nil
	}

	fmt.Fprintf(r.out, "%-4s  %-16s  %-5s  %s\n", "ID", "Position", "Ref", "Prompt")
	fmt.Fprintln(r.out, strings.Repeat("-", 60))
	for _, h := range st.Hotspots {
		ref := ""
		if h.Reference() != nil {
			ref = "yes"
		}
		prompt := "(no prompt)"
		if h.HasPrompt() {
			prompt = truncate(strings.TrimSpace(h.Prompt), 40)
		}
		fmt.Fprintf(r.out, "%-4d  (%6.2f, %6.2f)  %-5s  %s\n", h.ID, h.X, h.Y, ref, prompt)
	}
	return nil
}

// ProcessCommand submits the current hotspots for retouching.
type ProcessCommand struct{}

func (c *ProcessCommand) Name() string        { return "process" }
func (c *ProcessCommand) Aliases() []string   { return []string{"go", "apply"} }
func (c *ProcessCommand) Description() string { return "Apply the current edit points to the image" }
func (c *ProcessCommand) Usage() string       { return "process" }

func (c *ProcessCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	fmt.Fprintf(r.out, "Processing with %s...\n", r.model)

	processed, err := r.engine.Submit(ctx)
	if err != nil {
		return err
	}

	info := r.calc.Estimate(r.provider, r.model, 1)
	r.tracker.Record(info)

	st := r.engine.State()
	fmt.Fprintf(r.out, "Done. Edit %d complete, %d remaining in this session.\n",
		st.EditCount, st.RemainingEdits)
	fmt.Fprintf(r.out, "Estimated cost: $%.4f (%s %s)\n", info.Total, r.provider, r.model)

	if r.displayer != nil {
		data, url := r.engine.CurrentImageData()
		if err := r.displayer.Display(ctx, data, url); err != nil {
			fmt.Fprintf(r.err, "Warning: failed to display: %v\n", err)
		}
	}

	if processed.URL != "" {
		fmt.Fprintf(r.out, "Result: %s\n", processed.URL)
	}
	return nil
}

// HistoryCommand lists processed results.
type HistoryCommand struct{}

func (c *HistoryCommand) Name() string        { return "history" }
func (c *HistoryCommand) Aliases() []string   { return []string{"h", "hist"} }
func (c *HistoryCommand) Description() string { return "Show processed image history" }
func (c *HistoryCommand) Usage() string       { return "history" }

func (c *HistoryCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	st := r.engine.State()
	if len(st.History) == 0 {
		fmt.Fprintln(r.out, "No history yet")
		return nil
	}

	for i, entry := range st.History {
		marker := "  "
		if i == st.HistoryIndex {
			marker = "> "
		}
		label := "edit"
		if i == 0 {
			label = "original"
		}
		fmt.Fprintf(r.out, "%s[%d] %s %s\n",
			marker, i, entry.CreatedAt.Format("2006-01-02 15:04:05"), label)
	}
	return nil
}

// RevertCommand winds the working image back to an earlier history entry.
type RevertCommand struct{}

func (c *RevertCommand) Name() string        { return "revert" }
func (c *RevertCommand) Aliases() []string   { return []string{"undo", "u"} }
func (c *RevertCommand) Description() string { return "Revert to an earlier result (default: previous)" }
func (c *RevertCommand) Usage() string       { return "revert [index]" }

func (c *RevertCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	st := r.engine.State()

	index := st.HistoryIndex - 1
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid history index: %s", args[0])
		}
		index = parsed
	}

	entry, err := r.engine.Revert(ctx, index)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Reverted to entry %d (%s)\n", index, entry.CreatedAt.Format("2006-01-02 15:04:05"))

	if r.displayer != nil {
		data, url := r.engine.CurrentImageData()
		if err := r.displayer.Display(ctx, data, url); err != nil {
			fmt.Fprintf(r.err, "Warning: failed to display: %v\n", err)
		}
	}
	return nil
}

// ResetCommand discards all editing progress on the current image.
type ResetCommand struct{}

func (c *ResetCommand) Name() string        { return "reset" }
func (c *ResetCommand) Aliases() []string   { return nil }
func (c *ResetCommand) Description() string { return "Discard edits and return to the original image" }
func (c *ResetCommand) Usage() string       { return "reset" }

func (c *ResetCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	if err := r.engine.Reset(); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Workspace reset to the original image")
	return nil
}

// StatusCommand prints session counters and limits.
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Aliases() []string   { return []string{"st"} }
func (c *StatusCommand) Description() string { return "Show session limits and usage" }
func (c *StatusCommand) Usage() string       { return "status" }

func (c *StatusCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	st := r.engine.State()

	if st.Session == nil {
		fmt.Fprintln(r.out, "No active session (place an edit point to start one)")
	} else {
		fmt.Fprintf(r.out, "Session active, %d point(s) placed this phase\n", len(st.Hotspots))
	}
	fmt.Fprintf(r.out, "Edits used:        %d (%d remaining)\n", st.EditCount, st.RemainingEdits)
	fmt.Fprintf(r.out, "Points remaining:  %d this phase\n", st.RemainingHotspots)
	fmt.Fprintf(r.out, "Sessions used:     %d\n", st.SessionsUsed)

	if !st.CanAddHotspot.Allowed {
		fmt.Fprintf(r.out, "Cannot add points: %s\n", st.CanAddHotspot.Reason)
	}
	if !st.CanProcess.Allowed {
		fmt.Fprintf(r.out, "Cannot process:    %s\n", st.CanProcess.Reason)
	}
	if st.Processing {
		fmt.Fprintln(r.out, "A processing request is in flight")
	}
	return nil
}

// SaveCommand writes the working image to a file.
type SaveCommand struct{}

func (c *SaveCommand) Name() string        { return "save" }
func (c *SaveCommand) Aliases() []string   { return []string{"s"} }
func (c *SaveCommand) Description() string { return "Save the working image to a file" }
func (c *SaveCommand) Usage() string       { return "save [filename]" }

func (c *SaveCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	data, url := r.engine.CurrentImageData()
	if len(data) == 0 && url == "" {
		return fmt.Errorf("no image loaded")
	}

	path := export.GenerateFilename(time.Now())
	if len(args) > 0 {
		path = args[0]
	}

	saved, err := r.saver.Save(ctx, data, url, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Saved: %s\n", saved)
	return nil
}

// ShowCommand previews the working image inline.
type ShowCommand struct{}

func (c *ShowCommand) Name() string        { return "show" }
func (c *ShowCommand) Aliases() []string   { return []string{"display", "view"} }
func (c *ShowCommand) Description() string { return "Display the working image" }
func (c *ShowCommand) Usage() string       { return "show" }

func (c *ShowCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	data, url := r.engine.CurrentImageData()
	if len(data) == 0 && url == "" {
		return fmt.Errorf("no image loaded")
	}
	return r.displayer.Display(ctx, data, url)
}

// CostCommand reports estimated spend for this run.
type CostCommand struct{}

func (c *CostCommand) Name() string        { return "cost" }
func (c *CostCommand) Aliases() []string   { return []string{"$"} }
func (c *CostCommand) Description() string { return "Show estimated spend (cost reset to clear)" }
func (c *CostCommand) Usage() string       { return "cost [reset]" }

func (c *CostCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) > 0 && strings.ToLower(args[0]) == "reset" {
		r.tracker.Reset()
		fmt.Fprintln(r.out, "Cost tracker reset")
		return nil
	}

	total, batches := r.tracker.Summary()
	if batches == 0 {
		fmt.Fprintln(r.out, "No costs recorded yet")
		return nil
	}

	fmt.Fprintf(r.out, "Estimated spend: $%.4f across %d edit(s)\n", total, batches)
	return nil
}

// WorkspaceCommand persists and restores editing snapshots.
type WorkspaceCommand struct{}

func (c *WorkspaceCommand) Name() string        { return "workspace" }
func (c *WorkspaceCommand) Aliases() []string   { return []string{"ws"} }
func (c *WorkspaceCommand) Description() string { return "Manage saved workspaces (list, save, load, delete)" }
func (c *WorkspaceCommand) Usage() string       { return "workspace <list|save|load|delete> [id]" }

func (c *WorkspaceCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if r.store == nil {
		return fmt.Errorf("workspace persistence is not available")
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	subCmd := strings.ToLower(args[0])
	subArgs := args[1:]

	switch subCmd {
	case "list", "ls":
		return c.list(ctx, r)
	case "save":
		if len(subArgs) == 0 {
			return fmt.Errorf("usage: workspace save <id>")
		}
		return c.save(ctx, r, subArgs[0])
	case "load":
		if len(subArgs) == 0 {
			return fmt.Errorf("usage: workspace load <id>")
		}
		return c.load(ctx, r, subArgs[0])
	case "delete", "rm":
		if len(subArgs) == 0 {
			return fmt.Errorf("usage: workspace delete <id>")
		}
		return c.delete(ctx, r, subArgs[0])
	default:
		return fmt.Errorf("unknown workspace command: %s", subCmd)
	}
}

func (c *WorkspaceCommand) list(ctx context.Context, r *REPL) error {
	infos, err := r.store.List(ctx)
	if err != nil {
		return err
	}

	if len(infos) == 0 {
		fmt.Fprintln(r.out, "No saved workspaces")
		return nil
	}

	fmt.Fprintf(r.out, "%-16s  %-20s  %-6s  %s\n", "ID", "Updated", "Edits", "Points")
	fmt.Fprintln(r.out, strings.Repeat("-", 55))
	for _, info := range infos {
		fmt.Fprintf(r.out, "%-16s  %-20s  %-6d  %d\n",
			truncate(info.ID, 16),
			info.UpdatedAt.Format("2006-01-02 15:04:05"),
			info.EditCount,
			info.HotspotCount)
	}
	return nil
}

func (c *WorkspaceCommand) save(ctx context.Context, r *REPL, id string) error {
	if err := r.store.Save(ctx, id, r.engine.Snapshot()); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Workspace saved: %s\n", id)
	return nil
}

func (c *WorkspaceCommand) load(ctx context.Context, r *REPL, id string) error {
	snap, err := r.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("workspace not found: %s", id)
	}
	r.engine.Restore(snap)
	fmt.Fprintf(r.out, "Workspace loaded: %s\n", id)
	return nil
}

func (c *WorkspaceCommand) delete(ctx context.Context, r *REPL, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Workspace deleted: %s\n", id)
	return nil
}

// HelpCommand shows available commands.
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Aliases() []string   { return []string{"?"} }
func (c *HelpCommand) Description() string { return "Show available commands" }
func (c *HelpCommand) Usage() string       { return "help" }

func (c *HelpCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Available commands:")
	fmt.Fprintln(r.out)

	for _, cmd := range allCommands() {
		aliases := ""
		if len(cmd.Aliases()) > 0 {
			aliases = fmt.Sprintf(" (%s)", strings.Join(cmd.Aliases(), ", "))
		}
		fmt.Fprintf(r.out, "  %-12s%s\n", cmd.Name()+aliases, cmd.Description())
		fmt.Fprintf(r.out, "               Usage: %s\n", cmd.Usage())
	}

	return nil
}

// QuitCommand exits the REPL.
type QuitCommand struct{}

func (c *QuitCommand) Name() string        { return "quit" }
func (c *QuitCommand) Aliases() []string   { return []string{"exit", "q"} }
func (c *QuitCommand) Description() string { return "Exit interactive mode" }
func (c *QuitCommand) Usage() string       { return "quit" }

func (c *QuitCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Goodbye!")
	r.Stop()
	return nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid point id: %s", s)
	}
	return id, nil
}

func parseXY(xs, ys string) (float64, float64, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x coordinate: %s", xs)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid y coordinate: %s", ys)
	}
	return x, y, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
