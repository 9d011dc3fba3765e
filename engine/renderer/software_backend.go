package renderer

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/fence"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pipeline"
	"github.com/x448/float16"
)

// softwareImage holds the texels of an image on the software backend, Channels() floats per texel.
type softwareImage struct {
	pix      []float32
	channels int
}

// softwareWork is one item of the executor queue. Exactly one field is set.
type softwareWork struct {
	label    string
	commands []command
	signal   uint64
	fn       func()
}

// softwareRendererBackend is a RendererBackend that executes command lists on the CPU. A single
// executor goroutine plays the GPU queue: work runs asynchronously, strictly in submission order,
// and fence signals complete only after all earlier work. Passes are split into row bands across
// a worker pool.
type softwareRendererBackend struct {
	mu *sync.Mutex

	work   chan softwareWork
	done   chan struct{}
	closed bool

	pool    worker.DynamicWorkerPool
	workers int
	latency time.Duration
	fence   fence.Fence

	surfaceWidth, surfaceHeight int
	presented                   uint64
}

var _ RendererBackend = &softwareRendererBackend{}

func newSoftwareRendererBackend(workers int, latency time.Duration) *softwareRendererBackend {
	b := &softwareRendererBackend{
		mu:      &sync.Mutex{},
		work:    make(chan softwareWork, 64),
		done:    make(chan struct{}),
		pool:    worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
		workers: workers,
		latency: latency,
	}
	go b.execute()
	return b
}

// execute is the executor goroutine.
func (b *softwareRendererBackend) execute() {
	defer close(b.done)
	for w := range b.work {
		switch {
		case w.commands != nil:
			if b.latency > 0 {
				time.Sleep(b.latency)
			}
			b.run(w.label, w.commands)
		case w.fn != nil:
			w.fn()
		case w.signal > 0:
			if b.fence != nil {
				b.fence.Signal(w.signal)
			}
		}
	}
}

// enqueue hands work to the executor. It reports false once the backend was released.
func (b *softwareRendererBackend) enqueue(w softwareWork) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.work <- w
	return true
}

// await enqueues fn and blocks until the executor ran it or ctx ends.
func (b *softwareRendererBackend) await(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !b.enqueue(softwareWork{fn: func() {
		fn()
		close(finished)
	}}) {
		return ErrReleased
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("renderer: waiting for software executor: %w", ctx.Err())
	}
}

func (b *softwareRendererBackend) CreateImage(img *imageBase) error {
	channels := img.desc.Format.Channels()
	img.native = &softwareImage{
		pix:      make([]float32, img.desc.Width*img.desc.Height*channels),
		channels: channels,
	}
	return nil
}

func (b *softwareRendererBackend) UploadImage(img *imageBase, data common.ImageStagingData) error {
	texels, err := decodeTexels(img.desc.Format, data)
	if err != nil {
		return err
	}
	dst := img.native.(*softwareImage)
	if !b.enqueue(softwareWork{fn: func() { copy(dst.pix, texels) }}) {
		return ErrReleased
	}
	return nil
}

func (b *softwareRendererBackend) CreateUploadBuffer(buf *uploadBuffer) error {
	return nil
}

func (b *softwareRendererBackend) CreateMesh(m *mesh) error {
	m.native = m.model
	return nil
}

func (b *softwareRendererBackend) RegisterPipeline(p pipeline.Pipeline) error {
	if !p.Pass().Valid() {
		return fmt.Errorf("software backend has no kernel for %v", p.Pass())
	}
	return nil
}

func (b *softwareRendererBackend) CreateView(v *View) error {
	v.native = v.Image.base().native
	return nil
}

func (b *softwareRendererBackend) ReleaseView(v *View) {
	v.native = nil
}

func (b *softwareRendererBackend) Submit(lists []*commandList) error {
	for _, l := range lists {
		commands := append([]command(nil), l.commands...)
		if !b.enqueue(softwareWork{label: l.label, commands: commands}) {
			return ErrReleased
		}
	}
	return nil
}

func (b *softwareRendererBackend) Signal(value uint64) {
	if !b.enqueue(softwareWork{signal: value}) {
		common.Logger().Warn("signal after release dropped", "value", value)
	}
}

func (b *softwareRendererBackend) SetFence(f fence.Fence) {
	b.fence = f
}

func (b *softwareRendererBackend) FenceOptions() []fence.FenceBuilderOption {
	return nil
}

func (b *softwareRendererBackend) ReadImage(ctx context.Context, img *imageBase, channel int) (*common.FloatImage, error) {
	out := &common.FloatImage{Width: img.desc.Width, Height: img.desc.Height, Pix: make([]float32, img.desc.Width*img.desc.Height)}
	src := img.native.(*softwareImage)
	err := b.await(ctx, func() {
		for i := range out.Pix {
			out.Pix[i] = src.pix[i*src.channels+channel]
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *softwareRendererBackend) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.surfaceWidth, b.surfaceHeight = width, height
}

func (b *softwareRendererBackend) Present(v View) error {
	if !b.enqueue(softwareWork{fn: func() {
		b.presented++
		common.Logger().Debug("software present", "image", v.Image.Label(), "frame", b.presented)
	}}) {
		return ErrReleased
	}
	return nil
}

func (b *softwareRendererBackend) Release() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.work)
	b.mu.Unlock()
	<-b.done
}

// parallelRows splits [0, height) into bands and runs fn over them on the worker pool, returning
// once every band finished.
func (b *softwareRendererBackend) parallelRows(height int, fn func(y0, y1 int)) {
	bands := min(height, b.workers*4, 64)
	if bands <= 1 {
		fn(0, height)
		return
	}
	step := (height + bands - 1) / bands

	var wg sync.WaitGroup
	taskID := 0
	for y0 := 0; y0 < height; y0 += step {
		lo, hi := y0, min(y0+step, height)
		wg.Add(1)
		b.pool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				fn(lo, hi)
				return nil, nil
			},
		})
		taskID++
	}
	wg.Wait()
}

// decodeTexels converts staging bytes into floats, Channels() per texel.
func decodeTexels(f Format, data common.ImageStagingData) ([]float32, error) {
	if int(data.BytesPerPixel) != f.BytesPerTexel() {
		return nil, fmt.Errorf("%w: %v needs %d bytes per texel, got %d", ErrInvalidDescriptor, f, f.BytesPerTexel(), data.BytesPerPixel)
	}
	n := int(data.Width * data.Height)
	out := make([]float32, n*f.Channels())
	switch f {
	case FormatRGBA8Unorm:
		for i, v := range data.Pixels {
			out[i] = float32(v) / 255
		}
	case FormatRGBA16Float:
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data.Pixels[i*2:])).Float32()
		}
	case FormatR32Float, FormatDepth32Float:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data.Pixels[i*4:]))
		}
	}
	return out, nil
}
