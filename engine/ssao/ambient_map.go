package ssao

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
)

// HalfExtent returns the ambient map extent for a full-resolution extent, at least one texel per axis.
func HalfExtent(width, height int) (int, int) {
	return max(width/2, 1), max(height/2, 1)
}

// ambientImage is one R32Float image with a shader-read and a storage view.
type ambientImage struct {
	img         renderer.Image
	read, write renderer.ViewHandle
}

// ambientMapPair is the implementation of the AmbientMapPair interface.
type ambientMapPair struct {
	mu *sync.Mutex
	r  renderer.Renderer

	width, height int
	maps          [2]ambientImage
	scratch       ambientImage
}

// AmbientMapPair holds the two half-resolution ambient images the estimator and the blur alternate
// between, and the scratch image that carries the horizontal result of a blur iteration to its
// vertical half. Image 0 receives the raw estimate and each blur iteration swaps the roles, so the
// final image after k iterations is image k mod 2.
type AmbientMapPair interface {
	// Width returns the width of every image.
	Width() int

	// Height returns the height of every image.
	Height() int

	// Image returns image i of the pair.
	//
	// Parameters:
	//   - i: 0 or 1
	//
	// Returns:
	//   - renderer.Image: the image
	Image(i int) renderer.Image

	// ReadView returns the shader-read view of image i.
	ReadView(i int) renderer.ViewHandle

	// WriteView returns the storage view of image i.
	WriteView(i int) renderer.ViewHandle

	// Scratch returns the scratch image and its read and storage views.
	Scratch() (img renderer.Image, read, write renderer.ViewHandle)

	// Final returns the index of the image holding the result after the given number of blur iterations.
	Final(iterations int) int

	// Resize releases every image and view and creates them at the half extent of the new size.
	//
	// Parameters:
	//   - width, height: the new full-resolution extent
	//
	// Returns:
	//   - error: an error if allocation fails
	Resize(width, height int) error

	// Release frees every image and view.
	Release()
}

var _ AmbientMapPair = &ambientMapPair{}

// NewAmbientMapPair creates the pair and the scratch image at half the given extent.
//
// Parameters:
//   - r: the renderer
//   - width, height: the full-resolution extent
//
// Returns:
//   - AmbientMapPair: the images
//   - error: an error if allocation fails
func NewAmbientMapPair(r renderer.Renderer, width, height int) (AmbientMapPair, error) {
	p := &ambientMapPair{mu: &sync.Mutex{}, r: r}
	if err := p.allocate(width, height); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ambientMapPair) Width() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width
}

func (p *ambientMapPair) Height() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height
}

func (p *ambientMapPair) Image(i int) renderer.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maps[i&1].img
}

func (p *ambientMapPair) ReadView(i int) renderer.ViewHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maps[i&1].read
}

func (p *ambientMapPair) WriteView(i int) renderer.ViewHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maps[i&1].write
}

func (p *ambientMapPair) Scratch() (renderer.Image, renderer.ViewHandle, renderer.ViewHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scratch.img, p.scratch.read, p.scratch.write
}

func (p *ambientMapPair) Final(iterations int) int {
	return iterations & 1
}

func (p *ambientMapPair) Resize(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free()
	return p.allocate(width, height)
}

func (p *ambientMapPair) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free()
}

func (p *ambientMapPair) allocate(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: ambient maps for %dx%d", renderer.ErrInvalidDescriptor, width, height)
	}
	w, h := HalfExtent(width, height)
	roles := []pass.Role{pass.RoleAmbient0, pass.RoleAmbient1, pass.RoleScratch}
	made := make([]ambientImage, 0, len(roles))
	for _, role := range roles {
		a, err := p.newAmbientImage(role, w, h)
		if err != nil {
			for _, m := range made {
				p.freeImage(m)
			}
			return err
		}
		made = append(made, a)
	}
	p.width, p.height = w, h
	p.maps = [2]ambientImage{made[0], made[1]}
	p.scratch = made[2]
	return nil
}

func (p *ambientMapPair) newAmbientImage(role pass.Role, width, height int) (ambientImage, error) {
	img, err := p.r.CreateImage(renderer.ImageDescriptor{
		Label:  "ssao " + role.String(),
		Width:  width,
		Height: height,
		Format: renderer.FormatR32Float,
		Usage:  renderer.UsageStorage | renderer.UsageSampled,
	})
	if err != nil {
		return ambientImage{}, err
	}
	views := p.r.Views()
	read, err := views.Allocate(img, renderer.ViewKindShaderRead, role)
	if err != nil {
		img.Release()
		return ambientImage{}, err
	}
	write, err := views.Allocate(img, renderer.ViewKindStorage, role)
	if err != nil {
		freeViews(views, read)
		img.Release()
		return ambientImage{}, err
	}
	return ambientImage{img: img, read: read, write: write}, nil
}

func (p *ambientMapPair) freeImage(a ambientImage) {
	if a.img == nil {
		return
	}
	freeViews(p.r.Views(), a.read, a.write)
	a.img.Release()
}

func (p *ambientMapPair) free() {
	for _, a := range []ambientImage{p.maps[0], p.maps[1], p.scratch} {
		p.freeImage(a)
	}
	p.maps = [2]ambientImage{}
	p.scratch = ambientImage{}
}
