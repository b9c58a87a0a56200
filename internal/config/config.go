// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config decodes HCL frame-graph descriptions and assembles them
// into processes registered on a graph.
//
// A description names one surface, any number of images, clear passes and
// completion alerts, and optionally which image is presented:
//
//	surface {
//	  width  = var.width
//	  height = var.height
//	  images = var.images
//	}
//
//	image "depth" {
//	  format = "depth24plus-stencil8"
//	  scale  = 1
//	}
//
//	pass "main" {
//	  target = "swapchain"
//	  clear  = [0.8, 0.1, 0.3, 1.0]
//	}
//
//	alert "main_done" {
//	  after = "main"
//	}
//
// Targets are referenced by name: "swapchain", an image, or another pass, in
// which case the pass draws into whatever that pass rendered.
package config

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/gputypes"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// SwapchainName is the reserved name of the swapchain images.
const SwapchainName = "swapchain"

// Vars are the values exposed to a description as var.width, var.height and
// var.images.
type Vars struct {
	Width  uint32
	Height uint32
	Images int
}

// DefaultVars returns the variables used when none are given.
func DefaultVars() Vars {
	return Vars{Width: 800, Height: 600, Images: 3}
}

func (v Vars) evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"var": cty.ObjectVal(map[string]cty.Value{
				"width":  cty.NumberIntVal(int64(v.Width)),
				"height": cty.NumberIntVal(int64(v.Height)),
				"images": cty.NumberIntVal(int64(v.Images)),
			}),
		},
	}
}

// Description is a decoded frame-graph description.
type Description struct {
	Surface *Surface `hcl:"surface,block"`
	Images  []Image  `hcl:"image,block"`
	Passes  []Pass   `hcl:"pass,block"`
	Alerts  []Alert  `hcl:"alert,block"`
	Present *Present `hcl:"present,block"`
}

// Surface describes the presentation surface and its swapchain.
type Surface struct {
	Width  int     `hcl:"width"`
	Height int     `hcl:"height"`
	Images *int    `hcl:"images,optional"`
	Format *string `hcl:"format,optional"`
}

// Image describes an image. Without width and height it follows the
// surface size multiplied by scale.
type Image struct {
	Name   string   `hcl:"name,label"`
	Format string   `hcl:"format"`
	Width  *int     `hcl:"width,optional"`
	Height *int     `hcl:"height,optional"`
	Scale  *float64 `hcl:"scale,optional"`
}

// Pass describes a clear pass.
type Pass struct {
	Name   string    `hcl:"name,label"`
	Target string    `hcl:"target"`
	Clear  []float64 `hcl:"clear,optional"`
}

// Alert describes a completion alert.
type Alert struct {
	Name  string `hcl:"name,label"`
	After string `hcl:"after"`
}

// Present selects the presented image.
type Present struct {
	From string `hcl:"from"`
}

// formats maps description format names to texture formats.
var formats = map[string]gputypes.TextureFormat{
	"bgra8unorm":           gputypes.TextureFormatBGRA8Unorm,
	"rgba8unorm":           gputypes.TextureFormatRGBA8Unorm,
	"r8unorm":              gputypes.TextureFormatR8Unorm,
	"depth24plus-stencil8": gputypes.TextureFormatDepth24PlusStencil8,
}

// colorFormat reports whether f can be cleared as a color attachment.
func colorFormat(f gputypes.TextureFormat) bool {
	return f != gputypes.TextureFormatDepth24PlusStencil8
}

func logger() *slog.Logger { return framegraph.Logger() }

// Load reads and decodes the description at path.
func Load(path string, vars Vars) (*Description, error) {
	logger().Debug("config: decoding description", "path", path)
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parse %s: %w", path, diags)
	}
	return decode(file, path, vars)
}

// Parse decodes a description held in memory. filename is used in
// diagnostics only.
func Parse(src []byte, filename string, vars Vars) (*Description, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parse %s: %w", filename, diags)
	}
	return decode(file, filename, vars)
}

func decode(file *hcl.File, filename string, vars Vars) (*Description, error) {
	var desc Description
	if diags := gohcl.DecodeBody(file.Body, vars.evalContext(), &desc); diags.HasErrors() {
		return nil, fmt.Errorf("config: decode %s: %w", filename, diags)
	}
	if diags := desc.validate(); diags.HasErrors() {
		return nil, fmt.Errorf("config: %s: %w", filename, diags)
	}
	logger().Debug("config: description decoded",
		"file", filename,
		"images", len(desc.Images),
		"passes", len(desc.Passes),
		"alerts", len(desc.Alerts))
	return &desc, nil
}

func invalid(summary, format string, args ...any) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   fmt.Sprintf(format, args...),
	}
}

// validate checks names, formats, sizes and that every reference resolves.
func (d *Description) validate() hcl.Diagnostics {
	var diags hcl.Diagnostics

	if d.Surface == nil {
		diags = append(diags, invalid("Missing surface", "A description needs a surface block."))
	} else {
		s := d.Surface
		if s.Width <= 0 || s.Height <= 0 {
			diags = append(diags, invalid("Empty surface", "Surface size %dx%d must be positive.", s.Width, s.Height))
		}
		if s.Images != nil && *s.Images <= 0 {
			diags = append(diags, invalid("Invalid image count", "Surface image count %d must be positive.", *s.Images))
		}
		if s.Format != nil {
			if f, ok := formats[*s.Format]; !ok {
				diags = append(diags, invalid("Unknown format", "Surface format %q is not supported.", *s.Format))
			} else if !colorFormat(f) {
				diags = append(diags, invalid("Invalid surface format", "Surface format %q is not a color format.", *s.Format))
			}
		}
	}

	seen := map[string]string{SwapchainName: "swapchain"}
	declare := func(kind, name string) {
		if prev, ok := seen[name]; ok {
			diags = append(diags, invalid("Duplicate name", "%s %q is already declared as a %s.", kind, name, prev))
			return
		}
		seen[name] = kind
	}

	for _, img := range d.Images {
		declare("image", img.Name)
		if _, ok := formats[img.Format]; !ok {
			diags = append(diags, invalid("Unknown format", "Image %q has unsupported format %q.", img.Name, img.Format))
		}
		fixed := img.Width != nil || img.Height != nil
		switch {
		case fixed && (img.Width == nil || img.Height == nil):
			diags = append(diags, invalid("Incomplete image size", "Image %q needs both width and height.", img.Name))
		case fixed && (*img.Width <= 0 || *img.Height <= 0):
			diags = append(diags, invalid("Empty image", "Image %q size %dx%d must be positive.", img.Name, *img.Width, *img.Height))
		case fixed && img.Scale != nil:
			diags = append(diags, invalid("Conflicting image size", "Image %q sets both a size and a scale.", img.Name))
		}
		if img.Scale != nil && *img.Scale <= 0 {
			diags = append(diags, invalid("Invalid scale", "Image %q scale %g must be positive.", img.Name, *img.Scale))
		}
	}
	for _, p := range d.Passes {
		declare("pass", p.Name)
		if p.Clear != nil && len(p.Clear) != 4 {
			diags = append(diags, invalid("Invalid clear color", "Pass %q clear color needs 4 components, got %d.", p.Name, len(p.Clear)))
		}
	}
	for _, a := range d.Alerts {
		declare("alert", a.Name)
	}
	if diags.HasErrors() {
		return diags
	}

	r := d.newResolver()
	for _, p := range d.Passes {
		root, err := r.root(p.Target, nil)
		if err != nil {
			diags = append(diags, invalid("Invalid pass target", "Pass %q: %v.", p.Name, err))
			continue
		}
		if f := d.rootFormat(root); !colorFormat(f) {
			diags = append(diags, invalid("Invalid pass target", "Pass %q targets %q, which is not a color image.", p.Name, root))
		}
	}
	for _, a := range d.Alerts {
		if _, ok := r.kinds[a.After]; !ok || r.kinds[a.After] == "alert" {
			diags = append(diags, invalid("Unknown reference", "Alert %q follows %q, which is not an image or pass.", a.Name, a.After))
		}
	}
	if d.Present != nil {
		root, err := r.root(d.Present.From, nil)
		switch {
		case err != nil:
			diags = append(diags, invalid("Invalid present source", "%v.", err))
		case root != SwapchainName:
			diags = append(diags, invalid("Invalid present source", "%q does not render into the swapchain.", d.Present.From))
		}
	}
	return diags
}

// PresentFrom returns the name of the presented image: the present block's
// source, or else the last declared pass rendering into the swapchain, or
// else the swapchain itself.
func (d *Description) PresentFrom() string {
	if d.Present != nil {
		return d.Present.From
	}
	r := d.newResolver()
	for i := len(d.Passes) - 1; i >= 0; i-- {
		if root, err := r.root(d.Passes[i].Name, nil); err == nil && root == SwapchainName {
			return d.Passes[i].Name
		}
	}
	return SwapchainName
}

// ImageCount returns the swapchain image count, 3 unless set.
func (d *Description) ImageCount() int {
	if d.Surface == nil || d.Surface.Images == nil {
		return 3
	}
	return *d.Surface.Images
}

func (d *Description) rootFormat(root string) gputypes.TextureFormat {
	for _, img := range d.Images {
		if img.Name == root {
			return formats[img.Format]
		}
	}
	return gputypes.TextureFormatUndefined
}

// resolver follows pass targets down to the image or swapchain they draw
// into.
type resolver struct {
	kinds   map[string]string
	targets map[string]string
}

func (d *Description) newResolver() *resolver {
	r := &resolver{
		kinds:   map[string]string{SwapchainName: "swapchain"},
		targets: make(map[string]string, len(d.Passes)),
	}
	for _, img := range d.Images {
		r.kinds[img.Name] = "image"
	}
	for _, p := range d.Passes {
		r.kinds[p.Name] = "pass"
		r.targets[p.Name] = p.Target
	}
	for _, a := range d.Alerts {
		r.kinds[a.Name] = "alert"
	}
	return r
}

// root returns the image or swapchain name drawn into through name.
func (r *resolver) root(name string, visiting []string) (string, error) {
	for _, v := range visiting {
		if v == name {
			return "", fmt.Errorf("target cycle through %q", name)
		}
	}
	switch r.kinds[name] {
	case "swapchain", "image":
		return name, nil
	case "pass":
		return r.root(r.targets[name], append(visiting, name))
	case "alert":
		return "", fmt.Errorf("%q is an alert, not an image", name)
	default:
		return "", fmt.Errorf("unknown target %q", name)
	}
}
