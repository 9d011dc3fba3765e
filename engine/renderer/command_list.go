package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
)

// ConstantBinding binds a range of an UploadBuffer to a pass slot. Binding 0 carries the pass
// constants; binding 1 carries the pass-specific block (object array or occlusion constants).
type ConstantBinding struct {
	Binding int
	Buffer  UploadBuffer
	Offset  int
	Size    int
}

// RenderPassDescriptor describes a raster pass. The colour and depth targets are cleared on entry.
type RenderPassDescriptor struct {
	Pass       pass.ID
	Color      ViewHandle
	Depth      ViewHandle
	ClearColor [4]float32
	ClearDepth float32
	Constants  []ConstantBinding
}

// DispatchDescriptor describes a compute pass over a Width x Height grid of texels. Reads are bound
// after the constants in order, followed by Writes.
type DispatchDescriptor struct {
	Pass      pass.ID
	Constants []ConstantBinding
	Reads     []ViewHandle
	Writes    []ViewHandle
	Width     int
	Height    int
}

type commandKind int

const (
	commandTransition commandKind = iota
	commandBeginRenderPass
	commandDraw
	commandEndRenderPass
	commandDispatch
)

// command is one recorded operation with every handle already resolved.
type command struct {
	kind commandKind

	image         Image
	before, after pass.State

	pass         pass.ID
	color, depth View
	clearColor   [4]float32
	clearDepth   float32
	constants    []ConstantBinding

	mesh   Mesh
	object int

	reads, writes []View
	width, height int
}

// commandList is the implementation of the CommandList interface.
type commandList struct {
	label    string
	views    ViewHeap
	pipeline func(pass.ID) bool

	commands   []command
	closed     bool
	inPass     bool
	renderPass pass.ID
}

// CommandList records GPU work for one frame. Recording validates resource states so a missing
// transition is reported where it happens rather than producing undefined results.
type CommandList interface {
	// Label returns the debug label.
	Label() string

	// Reset discards recorded commands and reopens the list for recording.
	//
	// Returns:
	//   - error: ErrRenderPassActive if a pass was left open
	Reset() error

	// Transition records a state change of img. before must match the image's current state.
	//
	// Parameters:
	//   - img: the image
	//   - before: the state the image is expected to be in
	//   - after: the state to move it to
	//
	// Returns:
	//   - error: ErrInvalidTransition when before does not match or the usage forbids after
	Transition(img Image, before, after pass.State) error

	// BeginRenderPass opens a raster pass.
	//
	// Parameters:
	//   - desc: the pass targets and constants
	//
	// Returns:
	//   - error: ErrResourceState when a target is not in its attachment state
	BeginRenderPass(desc RenderPassDescriptor) error

	// DrawIndexed draws a mesh using the object constants at objectIndex.
	//
	// Parameters:
	//   - m: the mesh
	//   - objectIndex: the element of the object array to draw with
	//
	// Returns:
	//   - error: ErrNoRenderPass outside a raster pass
	DrawIndexed(m Mesh, objectIndex int) error

	// EndRenderPass closes the raster pass.
	//
	// Returns:
	//   - error: ErrNoRenderPass when no pass is open
	EndRenderPass() error

	// Dispatch records a compute pass.
	//
	// Parameters:
	//   - desc: the pass inputs, outputs and grid size
	//
	// Returns:
	//   - error: ErrResourceState when an input is not readable or an output not writable
	Dispatch(desc DispatchDescriptor) error

	// Close finishes recording. Only closed lists can be submitted.
	//
	// Returns:
	//   - error: ErrRenderPassActive if a pass was left open
	Close() error

	// Closed reports whether recording finished.
	Closed() bool

	// Len returns the number of recorded commands.
	Len() int
}

var _ CommandList = &commandList{}

func newCommandList(label string, views ViewHeap, pipeline func(pass.ID) bool) *commandList {
	return &commandList{label: label, views: views, pipeline: pipeline}
}

func (c *commandList) Label() string {
	return c.label
}

func (c *commandList) Reset() error {
	if c.inPass {
		return fmt.Errorf("%w: %s reset inside %v", ErrRenderPassActive, c.label, c.renderPass)
	}
	c.commands = c.commands[:0]
	c.closed = false
	return nil
}

func (c *commandList) Transition(img Image, before, after pass.State) error {
	if err := c.recording(); err != nil {
		return err
	}
	if c.inPass {
		return fmt.Errorf("%w: transition of %q inside %v", ErrRenderPassActive, img.Label(), c.renderPass)
	}
	if img.State() != before {
		return fmt.Errorf("%w: %q is %v, not %v", ErrInvalidTransition, img.Label(), img.State(), before)
	}
	if !allowedIn(img, after) {
		return fmt.Errorf("%w: %q usage does not allow %v", ErrInvalidTransition, img.Label(), after)
	}
	if before == after {
		return nil
	}
	img.base().state = after
	c.commands = append(c.commands, command{kind: commandTransition, image: img, before: before, after: after})
	return nil
}

func (c *commandList) BeginRenderPass(desc RenderPassDescriptor) error {
	if err := c.recording(); err != nil {
		return err
	}
	if c.inPass {
		return fmt.Errorf("%w: %v already open", ErrRenderPassActive, c.renderPass)
	}
	if desc.Pass.IsCompute() {
		return fmt.Errorf("renderer: %v is not a raster pass", desc.Pass)
	}
	if !c.pipeline(desc.Pass) {
		return fmt.Errorf("%w: %v", ErrPipelineNotFound, desc.Pass)
	}
	color, err := c.resolve(desc.Color, ViewKindRenderTarget)
	if err != nil {
		return err
	}
	depth, err := c.resolve(desc.Depth, ViewKindDepthTarget)
	if err != nil {
		return err
	}
	if color.Image.Width() != depth.Image.Width() || color.Image.Height() != depth.Image.Height() {
		return fmt.Errorf("%w: %v color target %dx%d does not match depth %dx%d", ErrInvalidDescriptor, desc.Pass,
			color.Image.Width(), color.Image.Height(), depth.Image.Width(), depth.Image.Height())
	}
	if err := checkConstants(desc.Pass, desc.Constants); err != nil {
		return err
	}

	c.inPass = true
	c.renderPass = desc.Pass
	c.commands = append(c.commands, command{
		kind:       commandBeginRenderPass,
		pass:       desc.Pass,
		color:      color,
		depth:      depth,
		clearColor: desc.ClearColor,
		clearDepth: desc.ClearDepth,
		constants:  append([]ConstantBinding(nil), desc.Constants...),
	})
	return nil
}

func (c *commandList) DrawIndexed(m Mesh, objectIndex int) error {
	if err := c.recording(); err != nil {
		return err
	}
	if !c.inPass {
		return fmt.Errorf("%w: draw of %q", ErrNoRenderPass, m.Name())
	}
	if objectIndex < 0 {
		return fmt.Errorf("%w: object index %d", ErrOutOfRange, objectIndex)
	}
	c.commands = append(c.commands, command{kind: commandDraw, pass: c.renderPass, mesh: m, object: objectIndex})
	return nil
}

func (c *commandList) EndRenderPass() error {
	if err := c.recording(); err != nil {
		return err
	}
	if !c.inPass {
		return ErrNoRenderPass
	}
	c.inPass = false
	c.commands = append(c.commands, command{kind: commandEndRenderPass, pass: c.renderPass})
	return nil
}

func (c *commandList) Dispatch(desc DispatchDescriptor) error {
	if err := c.recording(); err != nil {
		return err
	}
	if c.inPass {
		return fmt.Errorf("%w: dispatch inside %v", ErrRenderPassActive, c.renderPass)
	}
	if !desc.Pass.IsCompute() {
		return fmt.Errorf("renderer: %v is not a compute pass", desc.Pass)
	}
	if !c.pipeline(desc.Pass) {
		return fmt.Errorf("%w: %v", ErrPipelineNotFound, desc.Pass)
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return fmt.Errorf("%w: %v grid %dx%d", ErrInvalidDescriptor, desc.Pass, desc.Width, desc.Height)
	}
	if err := checkConstants(desc.Pass, desc.Constants); err != nil {
		return err
	}

	cmd := command{
		kind:      commandDispatch,
		pass:      desc.Pass,
		constants: append([]ConstantBinding(nil), desc.Constants...),
		width:     desc.Width,
		height:    desc.Height,
	}
	for _, h := range desc.Reads {
		v, err := c.resolve(h, ViewKindShaderRead)
		if err != nil {
			return err
		}
		cmd.reads = append(cmd.reads, v)
	}
	for _, h := range desc.Writes {
		v, err := c.resolve(h, ViewKindStorage)
		if err != nil {
			return err
		}
		cmd.writes = append(cmd.writes, v)
	}
	for _, w := range cmd.writes {
		for _, r := range cmd.reads {
			if w.Image.base() == r.Image.base() {
				return fmt.Errorf("%w: %v reads and writes %q", ErrResourceState, desc.Pass, w.Image.Label())
			}
		}
	}
	c.commands = append(c.commands, cmd)
	return nil
}

func (c *commandList) Close() error {
	if c.inPass {
		return fmt.Errorf("%w: %s closed inside %v", ErrRenderPassActive, c.label, c.renderPass)
	}
	c.closed = true
	return nil
}

func (c *commandList) Closed() bool {
	return c.closed
}

func (c *commandList) Len() int {
	return len(c.commands)
}

func (c *commandList) recording() error {
	if c.closed {
		return fmt.Errorf("%w: %s", ErrCommandListClosed, c.label)
	}
	return nil
}

// resolve looks up a handle and checks both its kind and the state of its image.
func (c *commandList) resolve(h ViewHandle, kind ViewKind) (View, error) {
	v, err := c.views.Resolve(h)
	if err != nil {
		return View{}, err
	}
	if v.Kind != kind {
		return View{}, fmt.Errorf("%w: %s is a %v view, want %v", ErrIncompatibleView, h, v.Kind, kind)
	}
	if want := kind.state(); v.Image.State() != want {
		return View{}, fmt.Errorf("%w: %q (%v) is %v, want %v", ErrResourceState, v.Image.Label(), v.Role, v.Image.State(), want)
	}
	return v, nil
}

func checkConstants(id pass.ID, bindings []ConstantBinding) error {
	for _, b := range bindings {
		if b.Buffer == nil {
			return fmt.Errorf("%w: %v binding %d has no buffer", ErrInvalidDescriptor, id, b.Binding)
		}
		if b.Offset < 0 || b.Size <= 0 || b.Offset+b.Size > b.Buffer.Size() {
			return fmt.Errorf("%w: %v binding %d range [%d, %d) of %q (size %d)", ErrOutOfRange, id, b.Binding,
				b.Offset, b.Offset+b.Size, b.Buffer.Label(), b.Buffer.Size())
		}
	}
	return nil
}
