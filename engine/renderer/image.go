package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
)

// Format is the texel format of an Image.
type Format int

const (
	// FormatRGBA16Float stores view-space normals.
	FormatRGBA16Float Format = iota

	// FormatDepth32Float is the depth attachment format.
	FormatDepth32Float

	// FormatR32Float stores single-channel ambient values.
	FormatR32Float

	// FormatRGBA8Unorm stores encoded random rotation vectors.
	FormatRGBA8Unorm
)

// Channels returns the number of channels per texel.
func (f Format) Channels() int {
	switch f {
	case FormatRGBA16Float, FormatRGBA8Unorm:
		return 4
	default:
		return 1
	}
}

// BytesPerTexel returns the size of one texel in GPU memory.
func (f Format) BytesPerTexel() int {
	switch f {
	case FormatRGBA16Float:
		return 8
	default:
		return 4
	}
}

func (f Format) String() string {
	switch f {
	case FormatRGBA16Float:
		return "RGBA16Float"
	case FormatDepth32Float:
		return "Depth32Float"
	case FormatR32Float:
		return "R32Float"
	case FormatRGBA8Unorm:
		return "RGBA8Unorm"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Usage is a set of ways an Image may be used.
type Usage uint32

const (
	// UsageRenderTarget allows colour attachment.
	UsageRenderTarget Usage = 1 << iota

	// UsageDepth allows depth attachment.
	UsageDepth

	// UsageSampled allows shader reads.
	UsageSampled

	// UsageStorage allows compute writes.
	UsageStorage

	// UsageCopyDst allows CPU uploads.
	UsageCopyDst
)

// Has reports whether every flag of other is set.
func (u Usage) Has(other Usage) bool {
	return u&other == other
}

// ImageDescriptor describes an image to create.
type ImageDescriptor struct {
	Label  string
	Width  int
	Height int
	Format Format
	Usage  Usage
}

func (d ImageDescriptor) validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: image %q has extent %dx%d", ErrInvalidDescriptor, d.Label, d.Width, d.Height)
	}
	if d.Format < FormatRGBA16Float || d.Format > FormatRGBA8Unorm {
		return fmt.Errorf("%w: image %q has unknown format %v", ErrInvalidDescriptor, d.Label, d.Format)
	}
	if (d.Format == FormatDepth32Float) != d.Usage.Has(UsageDepth) {
		return fmt.Errorf("%w: image %q: depth usage requires a depth format", ErrInvalidDescriptor, d.Label)
	}
	if d.Usage == 0 {
		return fmt.Errorf("%w: image %q has no usage", ErrInvalidDescriptor, d.Label)
	}
	return nil
}

// Image is a two-dimensional GPU image with an explicitly tracked access state.
//
// The state is tracked when commands are recorded. Since command lists execute in submission order,
// the recorded state is the state the image is in once all recorded work has executed.
type Image interface {
	// Label returns the debug label.
	Label() string

	// Width returns the width in texels.
	Width() int

	// Height returns the height in texels.
	Height() int

	// Format returns the texel format.
	Format() Format

	// Usage returns the allowed usages.
	Usage() Usage

	// State returns the access state as of the most recently recorded command.
	State() pass.State

	// Release frees the image. Releasing a shared image drops one reference.
	Release()

	base() *imageBase
}

// imageBase holds the fields common to every backend image.
type imageBase struct {
	desc     ImageDescriptor
	state    pass.State
	released bool
	release  func()

	// native is the backend object holding the texels.
	native any
}

var _ Image = &imageBase{}

func (b *imageBase) Label() string {
	return b.desc.Label
}

func (b *imageBase) Width() int {
	return b.desc.Width
}

func (b *imageBase) Height() int {
	return b.desc.Height
}

func (b *imageBase) Format() Format {
	return b.desc.Format
}

func (b *imageBase) Usage() Usage {
	return b.desc.Usage
}

func (b *imageBase) State() pass.State {
	return b.state
}

func (b *imageBase) Release() {
	if b.released {
		return
	}
	b.released = true
	if b.release != nil {
		b.release()
	}
}

func (b *imageBase) base() *imageBase {
	return b
}

// allowedIn reports whether the image's usage permits the state.
func allowedIn(img Image, s pass.State) bool {
	u := img.Usage()
	switch s {
	case pass.StateRenderTarget:
		return u.Has(UsageRenderTarget)
	case pass.StateDepthWrite:
		return u.Has(UsageDepth)
	case pass.StateShaderRead:
		return u.Has(UsageSampled)
	case pass.StateStorageWrite:
		return u.Has(UsageStorage)
	case pass.StateCopyDst:
		return u.Has(UsageCopyDst)
	}
	return s == pass.StateUndefined
}

// sharedImage is the implementation of the SharedImage interface.
type sharedImage struct {
	Image
	mu   *sync.Mutex
	refs int
}

// SharedImage is a reference-counted Image. The underlying image is released when the last
// reference is released.
type SharedImage interface {
	Image

	// Retain adds a reference.
	//
	// Returns:
	//   - SharedImage: the same image, for chaining
	Retain() SharedImage

	// RefCount returns the number of live references.
	//
	// Returns:
	//   - int: the reference count, zero once released
	RefCount() int
}

var _ SharedImage = &sharedImage{}

// NewSharedImage wraps img with a reference count of one.
//
// Parameters:
//   - img: the image to share, ownership passes to the SharedImage
//
// Returns:
//   - SharedImage: the shared image
func NewSharedImage(img Image) SharedImage {
	if img == nil {
		panic("renderer: NewSharedImage requires an image")
	}
	return &sharedImage{Image: img, mu: &sync.Mutex{}, refs: 1}
}

func (s *sharedImage) Retain() SharedImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs == 0 {
		panic(fmt.Sprintf("renderer: Retain on released shared image %q", s.Label()))
	}
	s.refs++
	return s
}

func (s *sharedImage) RefCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

func (s *sharedImage) Release() {
	s.mu.Lock()
	if s.refs == 0 {
		s.mu.Unlock()
		return
	}
	s.refs--
	last := s.refs == 0
	s.mu.Unlock()

	if last {
		s.Image.Release()
	}
}
