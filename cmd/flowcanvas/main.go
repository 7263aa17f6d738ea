package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rendis/flowcanvas/internal/diagram"
	"github.com/rendis/flowcanvas/internal/logging"
)

const usage = `usage: flowcanvas <command> [flags]

commands:
  serve          serve the canvas HTTP API (default)
  mcp            serve the canvas tools over MCP stdio
  render         render one workflow to stdout or a file
  install-tools  install the mermaid-ascii renderer
  reload         ask a running server to reload its configuration
  version        print the version
`

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe()
	case "mcp":
		err = runMCP()
	case "render":
		err = runRender(args)
	case "install-tools":
		runInstallTools(args)
	case "reload":
		if !signalRunningServer() {
			err = errors.New("no running server found")
		}
	case "version":
		printVersion()
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg := loadConfig()
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.openConfigured(ctx)
	disconnect := a.startLiveFeed(ctx)
	defer disconnect()
	stopRefresh := a.startRefresh(ctx)
	defer stopRefresh()

	swapper := newHandlerSwapper(a.panelHandler())
	go a.reloadOnHUP(ctx, swapper)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: swapper, ReadHeaderTimeout: 10 * time.Second}
	writePID()
	defer os.Remove(pidPath())

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("flowcanvas listening", slog.String("addr", cfg.ListenAddr), slog.String("version", version))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// reloadOnHUP reloads the configuration on SIGHUP. The log level and the
// panel apply immediately; other changes are reported as needing a restart.
func (a *app) reloadOnHUP(ctx context.Context, swapper *handlerSwapper) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			next := loadConfig()
			d := diffConfigs(a.cfg, next)
			if d.LogLevelChanged {
				a.level.Set(logging.ParseLevel(next.LogLevel))
			}
			if d.PanelChanged {
				a.cfg.MermaidBinDir = next.MermaidBinDir
				swapper.Swap(a.panelHandler())
			}
			a.cfg.LogLevel = next.LogLevel
			a.logger.Info("configuration reloaded",
				slog.Bool("log_level_changed", d.LogLevelChanged),
				slog.Bool("panel_changed", d.PanelChanged),
				slog.Any("restart_needed", d.RestartNeeded),
			)
		}
	}
}

func runMCP() error {
	a, err := newApp(loadConfig())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.openConfigured(ctx)
	disconnect := a.startLiveFeed(ctx)
	defer disconnect()
	stopRefresh := a.startRefresh(ctx)
	defer stopRefresh()

	return a.mcpServer().Serve(ctx)
}

func runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	format := fs.String("format", "text", "output format: text, ascii, mermaid, png")
	out := fs.String("o", "", "output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("render needs exactly one workflow id")
	}

	a, err := newApp(loadConfig())
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := a.workspace.Open(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	snap := st.Snapshot()
	model := a.renderer.Build(snap.Title, snap.Graph, snap.Context())

	var data []byte
	switch *format {
	case "text":
		data = []byte(diagram.RenderASCII(model))
	case "ascii":
		data = []byte(diagram.RenderASCIIAuto(ctx, model, a.cfg.MermaidBinDir))
	case "mermaid":
		data = []byte(diagram.RenderMermaid(model))
	case "png":
		if data, err = diagram.RenderImage(ctx, model); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	if *out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}

func writePID() {
	if err := os.MkdirAll(flowcanvasDir(), 0o700); err != nil {
		return
	}
	_ = os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// signalRunningServer sends SIGHUP to a running flowcanvas server (via pidfile).
func signalRunningServer() bool {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return false
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return false
	}
	fmt.Printf("Signaled running server (PID %d) to reload configuration\n", pid)
	return true
}
