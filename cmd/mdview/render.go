package main

import (
	"context"
	"log/slog"

	"github.com/gubarz/mdview/internal/config"
	"github.com/gubarz/mdview/internal/rendercache"
	"github.com/gubarz/mdview/internal/view"
)

// renderStack ties the snippet caches to one renderer. Finished renders
// signal notifier so viewers can redraw.
type renderStack struct {
	renderer *view.Renderer
	notifier *view.Notifier
	math     *rendercache.Cache[rendercache.MathKey]
	diagrams *rendercache.Cache[rendercache.DiagramKey]
}

func newRenderStack(ctx context.Context, theme string, log *slog.Logger) *renderStack {
	opts := config.Options()
	n := view.NewNotifier()

	math := rendercache.NewMathCache(
		rendercache.NewTeXRenderer(config.GetMathCommand()),
		rendercache.WithLogger(log),
		rendercache.WithNotify(n.Notify),
	)
	diagrams := rendercache.NewDiagramCache(
		rendercache.NewKrokiClient(config.GetMermaidURL()),
		rendercache.WithLogger(log),
		rendercache.WithNotify(n.Notify),
	)
	math.Start(ctx)
	diagrams.Start(ctx)

	r := view.New(view.Config{
		Math:          math,
		Diagrams:      diagrams,
		TextColor:     config.GetTextColor(),
		RenderMath:    opts.RenderMath,
		RenderMermaid: opts.RenderMermaid,
		Theme:         theme,
		Log:           log,
	})

	return &renderStack{renderer: r, notifier: n, math: math, diagrams: diagrams}
}

func (s *renderStack) Close() {
	s.math.Close()
	s.diagrams.Close()
}
