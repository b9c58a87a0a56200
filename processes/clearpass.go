// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package processes

import (
	"fmt"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/backend/halexec"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ClearPass records a render pass that clears its target image, and
// re-publishes the target so later processes depend on the cleared image.
//
// One color attachment is prepared per possible target view when frame
// resources are acquired, so recording only selects the attachment for the
// view published this frame.
type ClearPass struct {
	dev   *halexec.Device
	label string
	color gputypes.Color

	target *PassableImageView
	output *PassableImageView

	attachments []hal.RenderPassColorAttachment
	recorded    int
}

// NewClearPass returns a pass clearing target to color.
func NewClearPass(dev *halexec.Device, label string, target *PassableImageView, color gputypes.Color) *ClearPass {
	p := &ClearPass{dev: dev, label: label, color: color, target: target}
	p.output = framegraph.NewPassableResource[ImageView](p)
	return p
}

// Name returns the pass label.
func (p *ClearPass) Name() string { return p.label }

// Output returns the cleared image.
func (p *ClearPass) Output() *PassableImageView { return p.output }

// Recorded returns the number of command buffers recorded.
func (p *ClearPass) Recorded() int { return p.recorded }

// Dependencies returns the target image, written as a color attachment.
func (p *ClearPass) Dependencies() []framegraph.Dependency {
	return []framegraph.Dependency{framegraph.DependOn(p.target, framegraph.StageColorAttachmentOutput)}
}

// AcquireFrameResources prepares one attachment per possible target view.
func (p *ClearPass) AcquireFrameResources() error {
	views := p.target.PossibleValues()
	if len(views) == 0 {
		return fmt.Errorf("processes: pass %s: target has no images", p.label)
	}
	p.attachments = make([]hal.RenderPassColorAttachment, len(views))
	for i, v := range views {
		p.attachments[i] = hal.RenderPassColorAttachment{
			View:       v.View,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: p.color,
		}
	}
	p.output.SetPossibleValues(views)
	return nil
}

// CleanupFrameResources drops the attachments.
func (p *ClearPass) CleanupFrameResources() {
	p.attachments = nil
	p.output.SetPossibleValues(nil)
}

// RecordCommands records the clear for the view published this frame.
func (p *ClearPass) RecordCommands() (framegraph.CommandBuffer, error) {
	if !p.target.Published() {
		return nil, fmt.Errorf("processes: pass %s: target not published", p.label)
	}
	cur := p.target.Current()
	if cur.Index < 0 || cur.Index >= len(p.attachments) {
		return nil, fmt.Errorf("processes: pass %s: view %d has no attachment", p.label, cur.Index)
	}

	encoder, err := p.dev.BeginCommands(p.label)
	if err != nil {
		return nil, err
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            p.label,
		ColorAttachments: p.attachments[cur.Index : cur.Index+1],
	})
	rp.End()

	cb, err := p.dev.FinishCommands(encoder, p.label)
	if err != nil {
		return nil, err
	}
	p.recorded++
	p.output.Publish(cur)
	return cb, nil
}
