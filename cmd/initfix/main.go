package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mohaanymo/initfix/internal/config"
	"github.com/mohaanymo/initfix/internal/engine"
	"github.com/mohaanymo/initfix/internal/logger"
	"github.com/mohaanymo/initfix/internal/platform"
	"github.com/mohaanymo/initfix/internal/tui"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

// options holds flags that are not part of config.Config.
type options struct {
	configPath    string
	pick          bool
	listPlatforms bool
	showVersion   bool
}

func main() {
	cfg, opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("initfix %s (%s)\n", version, commit)
		os.Exit(0)
	}
	if opts.listPlatforms {
		for _, name := range platform.Names() {
			p, _ := platform.Lookup(name)
			fmt.Printf("%-16s %s\n", name, p)
		}
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*config.Config, *options, error) {
	cfg := config.New()
	opts := &options{configPath: findConfigPath(args)}

	// The config file provides defaults that explicit flags override.
	if opts.configPath != "" {
		if err := cfg.LoadFile(opts.configPath); err != nil {
			return nil, nil, err
		}
	}

	fs := flag.NewFlagSet("initfix", flag.ContinueOnError)
	fs.Usage = printUsage

	var inputs, headers multiFlag

	// Input/output
	fs.Var(&inputs, "input", "")
	fs.Var(&inputs, "i", "")
	fs.StringVar(&cfg.URL, "url", cfg.URL, "")
	fs.StringVar(&cfg.URL, "u", cfg.URL, "")
	fs.StringVar(&cfg.Output, "output", cfg.Output, "")
	fs.StringVar(&cfg.Output, "o", cfg.Output, "")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "")
	fs.StringVar(&cfg.OutputDir, "d", cfg.OutputDir, "")

	// Transformation
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "")
	fs.StringVar(&cfg.Mode, "m", cfg.Mode, "")
	fs.StringVar(&cfg.PlatformName, "platform", cfg.PlatformName, "")
	fs.StringVar(&cfg.PlatformName, "p", cfg.PlatformName, "")
	fs.StringVar(&cfg.Tracks, "tracks", cfg.Tracks, "")
	fs.BoolVar(&cfg.Verify, "verify", cfg.Verify, "")
	fs.BoolVar(&opts.pick, "pick", false, "")

	// Fetching
	fs.IntVar(&cfg.Threads, "threads", cfg.Threads, "")
	fs.IntVar(&cfg.Threads, "n", cfg.Threads, "")
	fs.Var(&headers, "header", "")
	fs.Var(&headers, "H", "")
	fs.StringVar(&cfg.Cookies, "cookie", cfg.Cookies, "")
	fs.Int64Var(&cfg.MaxBandwidth, "max-bandwidth", cfg.MaxBandwidth, "")
	fs.IntVar(&cfg.RetryAttempts, "retries", cfg.RetryAttempts, "")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "")

	// UI/logging
	fs.BoolVar(&cfg.NoProgress, "no-progress", cfg.NoProgress, "")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "")

	fs.StringVar(&opts.configPath, "config", opts.configPath, "")
	fs.BoolVar(&opts.listPlatforms, "list-platforms", false, "")
	fs.BoolVar(&opts.showVersion, "version", false, "")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	// Positional arguments are input files.
	inputs = append(inputs, fs.Args()...)
	if len(inputs) > 0 {
		cfg.Inputs = append(cfg.Inputs, inputs...)
	}

	// Parse headers
	for _, h := range headers {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			cfg.Headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, opts, nil
}

// findConfigPath returns the value of --config without parsing other flags.
func findConfigPath(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name != "config" || !strings.HasPrefix(arg, "-") {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `initfix - rewrite fMP4 init segments for picky playback platforms

Usage: initfix [options] -i <init.mp4> [-i <init.mp4>...]
       initfix [options] -u <URL>

Input/Output:
  -i, --input <file>        Init segment file (repeatable, or positional)
  -u, --url <URL>           Manifest URL (m3u8 or mpd)
  -o, --output <path>       Output file for a single input
  -d, --output-dir <dir>    Output directory (default: .)

Transformation:
  -m, --mode <mode>         encrypt, ec3, auto, inspect (default: auto)
  -p, --platform <name>     Target platform (default: default)
      --tracks <filter>     Manifest tracks: all, video, audio (default: all)
      --verify              Decode each output and check the signaling
      --pick                Choose manifest tracks interactively

Fetching:
  -n, --threads <num>       Concurrent jobs (default: 4)
  -H, --header <header>     Custom header (repeatable)
      --cookie <cookies>    Cookies for requests
      --max-bandwidth <B/s> Limit download bandwidth
      --retries <num>       Retry attempts for failed fetches (default: 3)
      --timeout <dur>       HTTP timeout (default: 30s)

Other:
      --config <file>       YAML config file; flags override it
      --no-progress         Disable TUI progress
  -v, --verbose             Debug logging
      --log-format <fmt>    text, json, pretty (default: text)
      --log-level <level>   debug, info, warn, error (default: info)
      --list-platforms      List known platforms
      --version             Show version

Examples:
  initfix -p edge-windows -i video_init.mp4 -o video_init_fixed.mp4
  initfix -m ec3 -d fixed/ audio_init.mp4
  initfix -p tizen3 -u https://example.com/manifest.mpd --tracks audio
  initfix -m inspect -u https://example.com/master.m3u8
`)
}

func run(ctx context.Context, cfg *config.Config, opts *options) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close()

	tracks, err := eng.Plan(ctx)
	if err != nil {
		return err
	}

	if opts.pick && eng.Manifest() != nil {
		picker := tui.NewPicker(tracks)
		if _, err := tea.NewProgram(picker, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("track picker error: %w", err)
		}

		result := picker.Result()
		if result.Canceled {
			fmt.Println("Canceled")
			return nil
		}
		if len(result.Selected) == 0 {
			return errors.New("no tracks selected")
		}
		tracks = result.Selected
	}

	source := cfg.URL
	if source == "" {
		source = fmt.Sprintf("%d file(s)", len(cfg.Inputs))
	}

	if cfg.NoProgress {
		go drain(eng.Progress())
		runErr := eng.Run(ctx, tracks)
		fmt.Print(tui.RenderSummary(eng.Results()))
		return runErr
	}

	// Run with TUI
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	model := tui.NewModel(eng.Progress(), tracks, source, cfg)
	p := tea.NewProgram(model, tea.WithAltScreen())

	errCh := make(chan error, 1)
	go func() {
		err := eng.Run(runCtx, tracks)
		if err != nil {
			p.Send(tui.ErrorMsg{Err: err})
		} else {
			p.Send(tui.DoneMsg{})
		}
		errCh <- err
	}()

	_, tuiErr := p.Run()
	// Quitting the TUI early cancels the remaining jobs.
	stop()
	runErr := <-errCh
	if tuiErr != nil {
		return fmt.Errorf("TUI error: %w", tuiErr)
	}

	fmt.Print(tui.RenderSummary(eng.Results()))
	return runErr
}

// newLogger writes to stderr. With the TUI on screen, only errors are
// logged.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level := logger.ParseLevel(cfg.LogLevel)
	if !cfg.NoProgress && level < slog.LevelError {
		level = slog.LevelError
	}
	return logger.New(logger.Config{
		Writer: os.Stderr,
		Format: cfg.LogFormat,
		Level:  level,
	})
}

func drain(ch <-chan engine.ProgressUpdate) {
	for range ch {
	}
}

// multiFlag implements flag.Value for repeatable flags
type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ", ")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}
