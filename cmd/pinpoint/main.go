package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/arjun/pinpoint/internal/config"
	"github.com/arjun/pinpoint/internal/display"
	"github.com/arjun/pinpoint/internal/engine"
	"github.com/arjun/pinpoint/internal/export"
	"github.com/arjun/pinpoint/internal/httpserver"
	"github.com/arjun/pinpoint/internal/imageio"
	"github.com/arjun/pinpoint/internal/keys"
	"github.com/arjun/pinpoint/internal/repl"
	"github.com/arjun/pinpoint/internal/retouch"
	"github.com/arjun/pinpoint/internal/retouch/gemini"
	"github.com/arjun/pinpoint/internal/retouch/openai"
	"github.com/arjun/pinpoint/internal/script"
	"github.com/arjun/pinpoint/internal/session"
	"github.com/arjun/pinpoint/internal/upload"
	"github.com/arjun/pinpoint/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	flagAPIKey      string
	flagModel       string
	flagAddr        string
	flagOutput      string
	flagStopOnError bool
	flagDelayMs     int
)

// App bundles the process-level dependencies so commands can be exercised in
// tests with fakes.
type App struct {
	In          io.Reader
	Out         io.Writer
	Err         io.Writer
	LoadConfig  func() (*config.Config, error)
	NewProvider func(cfg *config.Config, apiKey string) (retouch.Provider, error)
	NewStore    func() (*session.Store, error)
}

func DefaultApp() *App {
	return &App{
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		LoadConfig:  config.Load,
		NewProvider: newProvider,
		NewStore:    session.NewStore,
	}
}

func newProvider(cfg *config.Config, apiKey string) (retouch.Provider, error) {
	f := retouch.NewFactory()
	f.Register(models.ProviderOpenAI, func(c *retouch.Config) (retouch.Provider, error) {
		return openai.New(c)
	})
	f.Register(models.ProviderGemini, func(c *retouch.Config) (retouch.Provider, error) {
		return gemini.New(c)
	})
	return f.New(cfg.Provider, &retouch.Config{
		APIKey:     apiKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		TimeoutSec: cfg.TimeoutSec,
	})
}

func main() {
	app := DefaultApp()
	if err := fang.Execute(
		context.Background(),
		newRootCmd(app),
		fang.WithVersion(fmt.Sprintf("%s (commit: %s)", version, commit)),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pinpoint [image]",
		Short: "Point-and-edit AI photo retouching",
		Long: `pinpoint retouches photos through placed edit points: click a spot,
describe the change, and let an AI image model apply all the edits at once.

Examples:
  pinpoint portrait.png                     interactive retouching shell
  pinpoint serve                            HTTP API for a web frontend
  pinpoint apply portrait.png edits.txt     scripted batch edits
  pinpoint keys set openai sk-...           store an API key`,
		Args:    cobra.MaximumNArgs(1),
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.Context(), args, app)
		},
	}

	cmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "API key (defaults to stored key or environment)")
	cmd.PersistentFlags().StringVarP(&flagModel, "model", "m", "", "model override (e.g. gpt-image-1, gemini-2.5-flash-image)")

	cmd.AddCommand(
		newServeCmd(app),
		newApplyCmd(app),
		newKeysCmd(app),
		newWorkspacesCmd(app),
	)

	return cmd
}

func loadConfig(app *App) (*config.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	return cfg, nil
}

func buildEngine(app *App, cfg *config.Config) (*engine.Engine, string, error) {
	apiKey, source, err := keys.GetAPIKey(flagAPIKey, cfg.Provider, config.KeyEnvVar(cfg.Provider))
	if err != nil {
		return nil, "", err
	}

	prov, err := app.NewProvider(cfg, apiKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create provider: %w", err)
	}

	var uploader *upload.Client
	if cfg.UploadURL != "" {
		uploader = upload.NewClient(cfg.UploadURL)
	}

	eng := engine.New(engine.Options{
		Limits:   cfg.Limits,
		Provider: prov,
		Uploader: uploader,
		Logger:   slog.New(slog.NewTextHandler(app.Err, &slog.HandlerOptions{Level: slog.LevelWarn})),
	})
	return eng, source, nil
}

// modelName is the model shown in prompts and priced in cost estimates.
func modelName(cfg *config.Config) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	if cfg.Provider == models.ProviderGemini {
		return "gemini-2.5-flash-image"
	}
	return "gpt-image-1"
}

func loadInitialImage(ctx context.Context, eng *engine.Engine, src string) error {
	var data []byte
	var url string

	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		fetched, err := imageio.NewFetcher().Fetch(ctx, src)
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

	return eng.LoadImage(data, url)
}

func runREPL(ctx context.Context, args []string, app *App) error {
	cfg, err := loadConfig(app)
	if err != nil {
		return err
	}

	eng, keySource, err := buildEngine(app, cfg)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		if err := loadInitialImage(ctx, eng, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Loaded %s\n", args[0])
	}

	store, err := app.NewStore()
	if err != nil {
		fmt.Fprintf(app.Err, "Warning: workspace persistence unavailable: %v\n", err)
		store = nil
	} else {
		defer store.Close()
	}

	fmt.Fprintf(app.Out, "Using API key from %s\n", keySource)

	r := repl.New(&repl.Config{
		In:        app.In,
		Out:       app.Out,
		Err:       app.Err,
		Engine:    eng,
		Displayer: display.New(app.Out, nil),
		Saver:     export.NewSaver(nil),
		Store:     store,
		Provider:  cfg.Provider,
		Model:     modelName(cfg),
	})
	return r.Run(ctx)
}

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the retouching API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), app)
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (defaults to PINPOINT_ADDR or :8799)")

	return cmd
}

func runServe(ctx context.Context, app *App) error {
	cfg, err := loadConfig(app)
	if err != nil {
		return err
	}

	eng, _, err := buildEngine(app, cfg)
	if err != nil {
		return err
	}

	addr := flagAddr
	if addr == "" {
		addr = cfg.Addr
	}

	log := slog.New(slog.NewTextHandler(app.Err, nil))
	srv := &http.Server{
		Addr:    addr,
		Handler: httpserver.New(eng, nil, log),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening", "addr", addr, "provider", cfg.Provider)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newApplyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <image> <script>",
		Short: "Apply a scripted list of edit points to an image",
		Long: `apply places edit points from a script file and processes them in
batches within the session limits.

Script lines are "<x> <y> <prompt>" with percent coordinates, or a JSON
array of {x, y, prompt} objects when the file ends in .json.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), args, app)
		},
	}

	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write the final image to this file")
	cmd.Flags().BoolVar(&flagStopOnError, "stop-on-error", false, "stop at the first failed edit point")
	cmd.Flags().IntVar(&flagDelayMs, "delay-ms", 0, "pause between placed points")

	return cmd
}

func runApply(ctx context.Context, args []string, app *App) error {
	cfg, err := loadConfig(app)
	if err != nil {
		return err
	}

	eng, _, err := buildEngine(app, cfg)
	if err != nil {
		return err
	}

	if err := loadInitialImage(ctx, eng, args[0]); err != nil {
		return err
	}

	items, err := script.ParseFile(args[1])
	if err != nil {
		return err
	}

	runner := script.NewRunner(eng, app.Out, app.Err)
	results, err := runner.Run(ctx, items, &script.Options{
		StopOnError: flagStopOnError,
		DelayMs:     flagDelayMs,
	})
	runner.PrintSummary(results)
	if err != nil {
		return err
	}

	if flagOutput != "" {
		data, url := eng.CurrentImageData()
		saved, err := export.NewSaver(nil).Save(ctx, data, url, flagOutput)
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Saved: %s\n", saved)
	}

	return nil
}

func newKeysCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage stored API keys",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <provider> <key>",
			Short: "Store an API key for a provider",
			Args:  cobra.ExactArgs(2),
			RunE: func(_ *cobra.Command, args []string) error {
				store, err := keys.NewStore()
				if err != nil {
					return err
				}
				if err := store.Set(models.ProviderType(args[0]), args[1]); err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Stored key for %s: %s\n", args[0], keys.MaskKey(args[1]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <provider>",
			Short: "Show the stored key for a provider (masked)",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				store, err := keys.NewStore()
				if err != nil {
					return err
				}
				key, err := store.Get(models.ProviderType(args[0]))
				if err != nil {
					return err
				}
				if key == "" {
					return fmt.Errorf("no stored key for %s", args[0])
				}
				fmt.Fprintf(app.Out, "%s: %s\n", args[0], keys.MaskKey(key))
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <provider>",
			Short: "Delete the stored key for a provider",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				store, err := keys.NewStore()
				if err != nil {
					return err
				}
				if err := store.Delete(models.ProviderType(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Deleted key for %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List providers with stored keys",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				store, err := keys.NewStore()
				if err != nil {
					return err
				}
				providers, err := store.List()
				if err != nil {
					return err
				}
				if len(providers) == 0 {
					fmt.Fprintln(app.Out, "No stored keys")
					return nil
				}
				for _, p := range providers {
					fmt.Fprintln(app.Out, p)
				}
				return nil
			},
		},
	)

	return cmd
}

func newWorkspacesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspaces",
		Short: "Manage saved editing workspaces",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved workspaces",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				store, err := app.NewStore()
				if err != nil {
					return err
				}
				defer store.Close()

				infos, err := store.List(c.Context())
				if err != nil {
					return err
				}
				if len(infos) == 0 {
					fmt.Fprintln(app.Out, "No saved workspaces")
					return nil
				}
				fmt.Fprintf(app.Out, "%-16s  %-20s  %-6s  %s\n", "ID", "Updated", "Edits", "Points")
				for _, info := range infos {
					fmt.Fprintf(app.Out, "%-16s  %-20s  %-6d  %d\n",
						info.ID, info.UpdatedAt.Format("2006-01-02 15:04:05"),
						info.EditCount, info.HotspotCount)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a saved workspace",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				store, err := app.NewStore()
				if err != nil {
					return err
				}
				defer store.Close()

				snap, err := store.Load(c.Context(), args[0])
				if err != nil {
					return fmt.Errorf("workspace not found: %s", args[0])
				}

				fmt.Fprintf(app.Out, "Workspace %s\n", args[0])
				fmt.Fprintf(app.Out, "  Edits: %d  Sessions used: %d  History entries: %d\n",
					snap.EditCount, snap.SessionsUsed, len(snap.History))
				for _, h := range snap.Hotspots {
					prompt := "(no prompt)"
					if h.HasPrompt() {
						prompt = h.Prompt
					}
					fmt.Fprintf(app.Out, "  [%d] (%.2f, %.2f) %s\n", h.ID, h.X, h.Y, prompt)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a saved workspace",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				store, err := app.NewStore()
				if err != nil {
					return err
				}
				defer store.Close()

				if err := store.Delete(c.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Deleted workspace %s\n", args[0])
				return nil
			},
		},
	)

	return cmd
}
