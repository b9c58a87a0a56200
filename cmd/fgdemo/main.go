// Command fgdemo runs a frame graph described in HCL on a headless device.
//
// Usage:
//
//	fgdemo [-config graph.hcl] [-frames 120] [-width 800] [-height 600] [-images 3]
//	       [-resize-every 30] [-log-level info] [-log-format text]
//
// Without -config a built-in description is used: a swapchain cleared by a
// main pass and a post pass, an offscreen overlay, and completion alerts on
// the post pass and on a surface-sized depth image.
package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/backend/halexec"
	"github.com/gogpu/framegraph/internal/config"
	"github.com/gogpu/framegraph/processes"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
)

//go:embed default.hcl
var defaultDescription []byte

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type flags struct {
	config      string
	frames      int
	width       int
	height      int
	images      int
	resizeEvery int
	logLevel    string
	logFormat   string
}

func parseFlags(args []string, out io.Writer) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("fgdemo", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&f.config, "config", "", "frame graph description (HCL); built-in when empty")
	fs.IntVar(&f.frames, "frames", 120, "frames to run")
	fs.IntVar(&f.width, "width", 800, "surface width")
	fs.IntVar(&f.height, "height", 600, "surface height")
	fs.IntVar(&f.images, "images", 3, "swapchain images, exposed as var.images")
	fs.IntVar(&f.resizeEvery, "resize-every", 30, "resize the surface every N frames (0 disables)")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.width <= 0 || f.height <= 0 {
		return f, fmt.Errorf("fgdemo: invalid size %dx%d", f.width, f.height)
	}
	if f.frames < 0 || f.resizeEvery < 0 {
		return f, fmt.Errorf("fgdemo: -frames and -resize-every must not be negative")
	}
	return f, nil
}

// newLogger creates a logger writing to w at the named level and format.
func newLogger(level, format string, w io.Writer) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: l}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func run(out io.Writer, args []string) error {
	f, err := parseFlags(args, out)
	if err != nil {
		return err
	}
	framegraph.SetLogger(newLogger(f.logLevel, f.logFormat, os.Stderr))
	defer framegraph.SetLogger(nil)

	vars := config.Vars{Width: uint32(f.width), Height: uint32(f.height), Images: f.images}
	var desc *config.Description
	if f.config != "" {
		desc, err = config.Load(f.config, vars)
	} else {
		desc, err = config.Parse(defaultDescription, "default.hcl", vars)
	}
	if err != nil {
		return err
	}

	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return fmt.Errorf("fgdemo: create instance: %w", err)
	}
	defer instance.Destroy()
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("fgdemo: no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("fgdemo: open device: %w", err)
	}
	defer openDev.Device.Destroy()

	dev := halexec.NewDevice(openDev.Device, openDev.Queue, halexec.WithLabel("fgdemo"))
	defer dev.Destroy()

	g := framegraph.New(dev, framegraph.WithName("fgdemo"))
	defer g.Destroy()

	asm, err := desc.Assemble(dev, g, nil)
	if err != nil {
		return err
	}
	if err := g.Build(); err != nil {
		return err
	}
	printSchedule(out, g)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	loop := processes.NewFrameLoop(g, asm.Swapchain)
	w, h := uint32(f.width), uint32(f.height)
	err = loop.Run(ctx, f.frames, func(frame int) {
		if f.resizeEvery == 0 || frame == 0 || frame%f.resizeEvery != 0 {
			return
		}
		// Alternate between the requested size and a smaller one.
		if (frame/f.resizeEvery)%2 == 1 {
			asm.Surface.Resize(max(w/2, 1), max(h/2, 1))
		} else {
			asm.Surface.Resize(w, h)
		}
	})
	if err != nil {
		return err
	}
	for _, a := range asm.Alerts {
		a.Sync()
	}

	printStats(out, g, dev, loop, asm)
	return nil
}

func processName(g *framegraph.Graph, id framegraph.NodeID) string {
	p, ok := g.Process(id)
	if !ok {
		return "?"
	}
	if n, ok := p.(framegraph.Named); ok {
		return n.Name()
	}
	return framegraph.KindOf(p).String()
}

func printSchedule(out io.Writer, g *framegraph.Graph) {
	fmt.Fprintln(out, "schedule:")
	for i, group := range g.SubmitGroups() {
		names := make([]string, len(group))
		for j, id := range group {
			names[j] = processName(g, id)
		}
		fmt.Fprintf(out, "  group %d: %s\n", i, strings.Join(names, ", "))
	}
	for _, e := range g.Edges() {
		sync := "semaphore"
		if e.Semaphore == nil {
			sync = "none"
		}
		fmt.Fprintf(out, "  %s -> %s at %s (%s)\n",
			processName(g, e.Producer), processName(g, e.Consumer), e.Stage, sync)
	}
}

func printStats(out io.Writer, g *framegraph.Graph, dev *halexec.Device, loop *processes.FrameLoop, asm *config.Assembly) {
	gs := g.Stats()
	ls := loop.Stats()
	ds := dev.Stats()
	w, h := asm.Surface.Size()
	fmt.Fprintf(out, "frames: %d run, %d dropped, %d aborted, %d rebuilds\n",
		ls.Frames, ls.Dropped, gs.AbortedFrames, ls.Rebuilds)
	fmt.Fprintf(out, "presented: %d at %dx%d\n", len(asm.Surface.Presented()), w, h)
	fmt.Fprintf(out, "device: %d submissions, %d signals, %d waits\n", ds.Submissions, ds.Signals, ds.Waits)
	for name, a := range asm.Alerts {
		fmt.Fprintf(out, "alert %s: completed %d\n", name, a.Completed())
	}
}
