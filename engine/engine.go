package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/camera"
	"github.com/Carmen-Shannon/oxy-ssao/engine/profiler"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/fence"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/frame_resource"
	"github.com/Carmen-Shannon/oxy-ssao/engine/scene"
	"github.com/Carmen-Shannon/oxy-ssao/engine/ssao"
	"github.com/Carmen-Shannon/oxy-ssao/engine/window"
)

// RenderCallback is called after every submitted frame on the render goroutine.
type RenderCallback func(rc *RenderContext, f Frame, deltaTime float32)

// engine implements the Engine interface.
// Coordinates the tick, render and window threads.
type engine struct {
	mu *sync.Mutex

	rc     *RenderContext
	window window.Window

	backend         renderer.RendererBackendType
	rendererOptions []renderer.RendererBuilderOption
	ssaoOptions     []ssao.SSAOBuilderOption
	camera          camera.Camera
	width, height   int
	frameCount      int
	objectCapacity  int
	waitTimeout     time.Duration
	frameTimeout    time.Duration

	tickRateChannel chan time.Duration
	resizeChannel   chan [2]int

	running     bool
	wg          sync.WaitGroup
	quitChannel chan struct{}
	quitOnce    sync.Once

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate   time.Duration
	tickCallback     func(deltaTime float32)
	renderCallback   RenderCallback
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	start     time.Time
	lastFrame time.Time
}

// Engine is the main entry point for the engine.
// It owns the RenderContext and drives the frame loop, the tick loop and the window.
type Engine interface {
	// Context returns the render context frames are recorded with.
	//
	// Returns:
	//   - *RenderContext: the context
	Context() *RenderContext

	// Window returns the window, nil when headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Profiler returns the frame rate and fence stall profiler.
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for scene mutation and camera movement.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each submitted frame.
	//
	// Parameters:
	//   - callback: function receiving the context, the frame and the delta time in seconds
	SetRenderCallback(callback RenderCallback)

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// RenderFrame applies any pending resize and records one frame on the calling goroutine.
	// Run calls it in a loop; headless callers may step frames themselves instead.
	//
	// Parameters:
	//   - ctx: bounds the wait for the frame slot
	//
	// Returns:
	//   - Frame: the submitted frame
	//   - error: the resize or frame error
	RenderFrame(ctx context.Context) (Frame, error)

	// Resize requests a new extent, applied before the next frame. Later requests replace earlier ones.
	//
	// Parameters:
	//   - width, height: the new extent in pixels
	Resize(width, height int)

	// Run starts the tick and render loops and blocks until the window closes or Quit is called.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Release waits for in-flight frames and frees the render context and the window.
	//
	// Returns:
	//   - error: the wait error
	Release() error
}

var _ Engine = &engine{}

// NewEngine creates the renderer, the frame ring, the scene and the SSAO passes. With a window the
// renderer presents to it and resizes follow its framebuffer.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: a renderer, ring or SSAO construction error
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		mu:              &sync.Mutex{},
		backend:         renderer.BackendTypeWGPU,
		width:           1280,
		height:          720,
		frameCount:      3,
		objectCapacity:  256,
		frameTimeout:    5 * time.Second,
		tickRateChannel: make(chan time.Duration, 1),
		resizeChannel:   make(chan [2]int, 1),
		quitChannel:     make(chan struct{}),
		engineTickRate:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler()
	}
	if e.window != nil {
		e.width, e.height = e.window.Width(), e.window.Height()
		e.rendererOptions = append(e.rendererOptions, renderer.WithSurface(e.window))
	}

	rc, err := e.newRenderContext()
	if err != nil {
		return nil, err
	}
	e.rc = rc
	if e.window != nil {
		e.window.SetResizeCallback(e.Resize)
	}
	e.start = time.Now()
	e.lastFrame = e.start
	return e, nil
}

func (e *engine) newRenderContext() (*RenderContext, error) {
	r, err := renderer.NewRenderer(e.backend, e.rendererOptions...)
	if err != nil {
		return nil, err
	}
	ring, err := frame_resource.NewFrameRing(r,
		frame_resource.WithFrameCount(e.frameCount),
		frame_resource.WithObjectCapacity(e.objectCapacity),
		frame_resource.WithWaitTimeout(e.waitTimeout),
		frame_resource.WithWaitObserver(e.profiler.ObserveWait),
	)
	if err != nil {
		r.Release()
		return nil, err
	}
	s, err := ssao.New(r, e.width, e.height, e.ssaoOptions...)
	if err != nil {
		_ = ring.Release(context.Background())
		r.Release()
		return nil, err
	}
	cam := e.camera
	if cam == nil {
		cam = camera.NewCamera()
	}
	cam.SetAspect(float32(e.width) / float32(e.height))

	return &RenderContext{
		mu:       &sync.Mutex{},
		Renderer: r,
		Ring:     ring,
		Camera:   cam,
		Scene:    scene.NewScene("main", e.frameCount, e.objectCapacity),
		SSAO:     s,
		width:    e.width,
		height:   e.height,
	}, nil
}

func (e *engine) Context() *RenderContext {
	return e.rc
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) RenderFrame(ctx context.Context) (Frame, error) {
	select {
	case size := <-e.resizeChannel:
		if err := e.rc.Resize(ctx, size[0], size[1]); err != nil {
			return Frame{}, fmt.Errorf("engine: resize to %dx%d: %w", size[0], size[1], err)
		}
	default:
	}

	now := time.Now()
	total := float32(now.Sub(e.start).Seconds())
	dt := float32(now.Sub(e.lastFrame).Seconds())
	e.lastFrame = now
	f, err := e.rc.Frame(ctx, total, dt)
	if err != nil {
		return Frame{}, err
	}

	if e.window != nil {
		if err := e.rc.Renderer.Present(f.Output.AmbientView); err != nil {
			common.Logger().Warn("present failed", "err", err)
		}
	}
	if cb := e.renderCallbackFn(); cb != nil {
		cb(e.rc, f, dt)
	}
	if e.profilerEnabled() {
		e.profiler.Tick()
	}
	return f, nil
}

func (e *engine) Resize(width, height int) {
	size := [2]int{width, height}
	select {
	case e.resizeChannel <- size:
	default:
		// Replace the pending request.
		select {
		case <-e.resizeChannel:
		default:
		}
		e.resizeChannel <- size
	}
}

func (e *engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

// handle launches the tick and render goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate tick loop and listens for rate changes via tickRateChannel.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	e.mu.Lock()
	rate := e.engineTickRate
	e.mu.Unlock()
	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if cb := e.tickCallbackFn(); cb != nil {
				cb(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
		}
	}
}

// handleRender records frames until quit. A lost device ends the engine; other frame errors are
// logged and the loop continues.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}
		begin := time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), e.frameTimeout)
		_, err := e.RenderFrame(ctx)
		cancel()
		if errors.Is(err, fence.ErrDeviceLost) || errors.Is(err, frame_resource.ErrReleased) {
			common.Logger().Error("render loop stopping", "err", err)
			e.signalQuit()
			return
		}
		if err != nil {
			common.Logger().Warn("frame failed", "err", err)
		}

		if limit := e.frameLimit(); limit > 0 {
			if remaining := limit - time.Since(begin); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

func (e *engine) Release() error {
	e.signalQuit()
	e.wg.Wait()
	ctx, cancel := context.WithTimeout(context.Background(), e.frameTimeout)
	defer cancel()
	err := e.rc.Release(ctx)
	if e.window != nil && e.window.IsRunning() {
		err = errors.Join(err, e.window.Close())
	}
	return err
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

func (e *engine) profilerEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profilingEnabled
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	e.mu.Lock()
	running := e.running
	e.engineTickRate = newRate
	e.mu.Unlock()
	if !running {
		return
	}
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

func (e *engine) tickCallbackFn() func(float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickCallback
}

func (e *engine) SetRenderCallback(callback RenderCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderCallback = callback
}

func (e *engine) renderCallbackFn() RenderCallback {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderCallback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderFrameLimit = frameDuration(fps)
}

func (e *engine) frameLimit() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderFrameLimit
}

// frameDuration converts a frame rate cap to the minimum frame duration, 0 meaning uncapped.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
