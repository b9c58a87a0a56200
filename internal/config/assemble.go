// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"fmt"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/backend/halexec"
	"github.com/gogpu/framegraph/processes"
	"github.com/gogpu/gputypes"
)

// Assembly holds the processes created from a description.
type Assembly struct {
	Surface   *processes.HeadlessSurface
	Swapchain *processes.Swapchain
	Images    map[string]*processes.Image
	Passes    map[string]*processes.ClearPass
	Alerts    map[string]*processes.CompletionAlert
	Present   *processes.Present
}

// AlertFunc receives completion notifications from every alert.
type AlertFunc func(label string, serial uint64)

// Assemble creates the described processes on dev and registers them on g.
// The graph is not built. notify may be nil.
func (d *Description) Assemble(dev *halexec.Device, g *framegraph.Graph, notify AlertFunc) (*Assembly, error) {
	if diags := d.validate(); diags.HasErrors() {
		return nil, fmt.Errorf("config: %w", diags)
	}

	format := dev.SurfaceFormat()
	if d.Surface.Format != nil {
		format = formats[*d.Surface.Format]
	}
	a := &Assembly{
		Surface: processes.NewHeadlessSurface(uint32(d.Surface.Width), uint32(d.Surface.Height), format),
		Images:  make(map[string]*processes.Image, len(d.Images)),
		Passes:  make(map[string]*processes.ClearPass, len(d.Passes)),
		Alerts:  make(map[string]*processes.CompletionAlert, len(d.Alerts)),
	}
	a.Swapchain = processes.NewSwapchain(dev, a.Surface, d.ImageCount())
	g.AddProcess(a.Swapchain)

	for _, img := range d.Images {
		desc := processes.ImageDescriptor{Label: img.Name, Format: formats[img.Format]}
		if img.Width != nil {
			desc.Width, desc.Height = uint32(*img.Width), uint32(*img.Height)
		}
		if img.Scale != nil {
			desc.Scale = *img.Scale
		}
		if !colorFormat(desc.Format) {
			desc.Usage = gputypes.TextureUsageRenderAttachment
		}
		a.Images[img.Name] = processes.NewImage(dev, a.Surface, desc)
		g.AddProcess(a.Images[img.Name])
	}

	// Passes may target passes declared after them.
	var passFor func(name string) *processes.ClearPass
	byName := make(map[string]Pass, len(d.Passes))
	for _, p := range d.Passes {
		byName[p.Name] = p
	}
	passFor = func(name string) *processes.ClearPass {
		if cp, ok := a.Passes[name]; ok {
			return cp
		}
		p := byName[name]
		cp := processes.NewClearPass(dev, p.Name, a.output(p.Target, passFor), clearColor(p.Clear))
		a.Passes[name] = cp
		return cp
	}
	for _, p := range d.Passes {
		g.AddProcess(passFor(p.Name))
	}

	a.Present = processes.NewPresent(dev, a.Swapchain, a.output(d.PresentFrom(), passFor))
	g.AddProcess(a.Present)

	for _, al := range d.Alerts {
		alert := processes.NewCompletionAlert(dev, al.Name, a.output(al.After, passFor), notify)
		a.Alerts[al.Name] = alert
		g.AddProcess(alert)
	}

	logger().Info("config: graph assembled",
		"images", len(a.Images),
		"passes", len(a.Passes),
		"alerts", len(a.Alerts),
		"present", d.PresentFrom())
	return a, nil
}

// output returns the image view resource published under name. Names are
// validated, so an unknown name cannot occur.
func (a *Assembly) output(name string, passFor func(string) *processes.ClearPass) *processes.PassableImageView {
	if name == SwapchainName {
		return a.Swapchain.Output()
	}
	if img, ok := a.Images[name]; ok {
		return img.Output()
	}
	return passFor(name).Output()
}

func clearColor(c []float64) gputypes.Color {
	if len(c) != 4 {
		return gputypes.Color{A: 1}
	}
	return gputypes.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
}
