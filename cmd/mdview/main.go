package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/gubarz/mdview/internal/config"
	"github.com/gubarz/mdview/internal/document"
	"github.com/gubarz/mdview/internal/find"
	"github.com/gubarz/mdview/internal/outline"
	"github.com/gubarz/mdview/internal/server"
	"github.com/gubarz/mdview/internal/ui"
	"github.com/gubarz/mdview/internal/view"
	"github.com/gubarz/mdview/internal/workspace"
)

var version = "0.2.0"

var rootCmd = &cobra.Command{
	Use:   "mdview [file...]",
	Short: "Markdown viewer with math and Mermaid",
	Long: `Markdown viewer for the terminal and the browser.

Opens each file in its own tab with an outline, find-in-page and
optional reload on change. Math is rendered through a TeX to SVG
command and Mermaid diagrams through a Kroki server.`,
	RunE: runView,
}

var viewCmd = &cobra.Command{
	Use:   "view [file...]",
	Short: "Open files in the terminal viewer",
	RunE:  runView,
}

var preprocessCmd = &cobra.Command{
	Use:   "preprocess <file>",
	Short: "Print the Markdown after the display rewrites",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreprocess,
}

var outlineCmd = &cobra.Command{
	Use:   "outline <file>",
	Short: "Print the heading outline of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutline,
}

var findCmd = &cobra.Command{
	Use:   "find <file> <query>",
	Short: "Search a file and print matching lines",
	Args:  cobra.ExactArgs(2),
	RunE:  runFind,
}

var htmlCmd = &cobra.Command{
	Use:   "html <file>",
	Short: "Render a file to HTML, waiting for math and diagrams",
	Args:  cobra.ExactArgs(1),
	RunE:  runHTML,
}

var serveCmd = &cobra.Command{
	Use:   "serve [file...]",
	Short: "Serve live HTML previews over HTTP",
	RunE:  runServe,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(viewCmd, preprocessCmd, outlineCmd, findCmd, htmlCmd, serveCmd)

	rootCmd.PersistentFlags().String("theme", "", "Theme: dark, light or a chroma style name")
	rootCmd.PersistentFlags().Bool("no-math", false, "Show math as source")
	rootCmd.PersistentFlags().Bool("no-mermaid", false, "Show Mermaid diagrams as source")
	rootCmd.PersistentFlags().Bool("auto-reload", false, "Reload files when they change on disk")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file")

	outlineCmd.Flags().Bool("json", false, "Print the outline as JSON")
	findCmd.Flags().BoolP("case-sensitive", "c", false, "Match case exactly")
	htmlCmd.Flags().StringP("output", "o", "", "Write HTML to this file instead of stdout")
	htmlCmd.Flags().Duration("timeout", 30*time.Second, "Give up waiting for snippets after this long")
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on")

	viper.BindPFlag("theme", rootCmd.PersistentFlags().Lookup("theme"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
	}
}

// applyFlags copies toggles that only switch features off or on.
func applyFlags(cmd *cobra.Command) {
	opts := config.Options()
	if off, _ := cmd.Flags().GetBool("no-math"); off {
		opts.RenderMath = false
	}
	if off, _ := cmd.Flags().GetBool("no-mermaid"); off {
		opts.RenderMermaid = false
	}
	config.SetOptions(opts)

	if on, _ := cmd.Flags().GetBool("auto-reload"); on {
		config.SetAutoReload(true)
	}
}

// newLogger writes to the configured log file. Without one, the viewer
// discards logs and the other commands print warnings to stderr.
func newLogger(tui bool) (*slog.Logger, func(), error) {
	path := config.GetLogFile()
	if path == "" {
		if tui {
			return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	log := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return log, func() { f.Close() }, nil
}

// openWorkspace opens every path in order. A file that fails to open is
// reported and skipped; the last one opened is active.
func openWorkspace(paths []string, log *slog.Logger) *workspace.Workspace {
	ws := workspace.New(config.Options(), log)
	ws.SetTheme(config.GetTheme())
	for _, p := range paths {
		if _, err := ws.Open(p); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	if config.GetAutoReload() {
		if err := ws.SetAutoReload(true); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return ws
}

func runView(cmd *cobra.Command, args []string) error {
	applyFlags(cmd)

	log, closeLog, err := newLogger(true)
	if err != nil {
		return err
	}
	defer closeLog()

	ws := openWorkspace(args, log)
	defer ws.Shutdown()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		for _, doc := range ws.Documents() {
			fmt.Print(doc.Transformed)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stack := newRenderStack(ctx, config.GetTheme(), log)
	defer stack.Close()
	ws.AttachCaches(stack.math, stack.diagrams)

	return ui.Run(ui.Options{
		Workspace:   ws,
		Renderer:    stack.renderer,
		Notifier:    stack.notifier,
		ShowOutline: config.GetShowOutline(),
		Log:         log,
	})
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	applyFlags(cmd)
	doc, err := document.Open(0, args[0], config.Options())
	if err != nil {
		return err
	}
	fmt.Print(doc.Transformed)
	return nil
}

func runOutline(cmd *cobra.Command, args []string) error {
	doc, err := document.Open(0, args[0], config.Options())
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		items := doc.Outline
		if items == nil {
			items = []outline.Item{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	for _, item := range doc.Outline {
		indent := strings.Repeat("  ", item.Level-1)
		fmt.Printf("h%d %4d  %-24s %s%s\n", item.Level, item.Line+1, "#"+item.Slug, indent, item.Title)
	}
	return nil
}

func runFind(cmd *cobra.Command, args []string) error {
	raw, err := document.ReadMarkdown(document.NormalizePath(args[0]))
	if err != nil {
		return err
	}
	caseSensitive, _ := cmd.Flags().GetBool("case-sensitive")

	matches := find.Find(raw, args[1], caseSensitive)
	for _, m := range matches {
		fmt.Printf("%d:%d  %s\n", m.Line+1, m.Column+1, m.Preview)
	}
	if len(matches) >= find.MaxMatches {
		fmt.Fprintf(os.Stderr, "stopped after %d matches\n", find.MaxMatches)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no matches for %q", args[1])
	}
	return nil
}

func runHTML(cmd *cobra.Command, args []string) error {
	applyFlags(cmd)

	log, closeLog, err := newLogger(false)
	if err != nil {
		return err
	}
	defer closeLog()

	doc, err := document.Open(0, args[0], config.Options())
	if err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	stack := newRenderStack(ctx, config.GetTheme(), log)
	defer stack.Close()

	res, err := stack.renderer.RenderSettled(ctx, doc.Transformed, stack.notifier.C(), view.WithHeadings(doc.Outline))
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if err != nil {
		log.Warn("snippets still rendering at timeout", "pending", res.Pending)
	}
	if res.Failed > 0 {
		log.Warn("some snippets failed to render", "failed", res.Failed)
	}

	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		_, err = io.WriteString(os.Stdout, res.HTML)
		return err
	}
	return os.WriteFile(out, []byte(res.HTML), 0o644)
}

func runServe(cmd *cobra.Command, args []string) error {
	applyFlags(cmd)

	log, closeLog, err := newLogger(false)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws := openWorkspace(args, log)
	defer ws.Shutdown()

	stack := newRenderStack(ctx, config.GetTheme(), log)
	defer stack.Close()
	ws.AttachCaches(stack.math, stack.diagrams)

	srv := server.NewServer(ws, stack.renderer, log)
	go srv.Watch(ctx, stack.notifier)

	httpServer := &http.Server{
		Addr:              config.GetListen(),
		Handler:           srv,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "Serving on http://%s\n", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func main() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
