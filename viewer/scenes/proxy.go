package scenes

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/quillview/quillview/common"
)

// Proxy fronts the scene for the frame pipeline: it owns the live scene,
// tracks its logical view box, and turns build requests into lazy command
// streams. Tessellation fans out across a reusable worker pool; commands are
// emitted in display-list order regardless of completion order.
type Proxy interface {
	// SetViewBox retargets the live scene's logical view box, e.g. after a
	// window resize.
	//
	// Parameters:
	//   - viewBox: the new view box in scene coordinates
	SetViewBox(viewBox common.Rect)

	// ReplaceScene swaps in a newly loaded scene.
	//
	// Parameters:
	//   - scene: the new scene
	ReplaceScene(scene *Scene)

	// BuildWithStream starts a build for the given options and returns its
	// command stream. The stream is single-use; each frame must request a
	// fresh build.
	//
	// Parameters:
	//   - options: the resolved build request
	//
	// Returns:
	//   - *CommandStream: the lazy, ordered command sequence
	BuildWithStream(options BuiltOptions) *CommandStream
}

type proxy struct {
	mu *sync.Mutex

	scene *Scene

	jobs      int
	buildPool worker.DynamicWorkerPool
}

var _ Proxy = &proxy{}

// NewProxy creates a scene proxy over the given scene.
//
// Parameters:
//   - scene: the initial scene
//   - options: functional options to configure the proxy
//
// Returns:
//   - Proxy: the newly created proxy
func NewProxy(scene *Scene, options ...ProxyOption) Proxy {
	p := &proxy{
		mu:    &sync.Mutex{},
		scene: scene,
		jobs:  max(runtime.NumCPU()-1, 1),
	}
	for _, opt := range options {
		opt(p)
	}
	p.buildPool = worker.NewDynamicWorkerPool(p.jobs, 256, 1*time.Second)
	return p
}

// ProxyOption is a functional option for configuring a Proxy.
type ProxyOption func(*proxy)

// WithJobs sets the number of build workers. Values <= 0 keep the default
// (one per CPU, minus one for the render thread).
//
// Parameters:
//   - jobs: worker count
//
// Returns:
//   - ProxyOption: option function to apply
func WithJobs(jobs int) ProxyOption {
	return func(p *proxy) {
		if jobs > 0 {
			p.jobs = jobs
		}
	}
}

func (p *proxy) SetViewBox(viewBox common.Rect) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scene.SetViewBox(viewBox)
}

func (p *proxy) ReplaceScene(scene *Scene) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scene = scene
}

func (p *proxy) BuildWithStream(options BuiltOptions) *CommandStream {
	p.mu.Lock()
	paths := p.scene.Paths()
	p.mu.Unlock()

	start := time.Now()
	ch := make(chan Command, 16)

	// One task per path; per-index done channels let the coordinator emit
	// results in display-list order as soon as each prefix completes.
	batches := make([]DrawBatchCommand, len(paths))
	done := make([]chan struct{}, len(paths))
	for i := range done {
		done[i] = make(chan struct{})
	}

	for i, path := range paths {
		idx, pth := i, path
		p.buildPool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer close(done[idx])
				batches[idx] = tessellatePath(pth)
				return nil, nil
			},
		})
	}

	go func() {
		for i := range paths {
			<-done[i]
			ch <- batches[i]
		}
		ch <- FinishCommand{BuildTime: time.Since(start)}
		close(ch)
	}()

	return &CommandStream{ch: ch}
}

// tessellatePath converts one path's contours into an indexed triangle batch.
// Each contour is fanned from its first vertex; the backend resolves winding.
func tessellatePath(path Path) DrawBatchCommand {
	var vertices []float32
	var indices []uint32

	for _, contour := range path.Contours {
		if len(contour) < 3 {
			continue
		}
		base := uint32(len(vertices) / 2)
		for _, pt := range contour {
			vertices = append(vertices, pt.X, pt.Y)
		}
		for i := uint32(1); i+1 < uint32(len(contour)); i++ {
			indices = append(indices, base, base+i, base+i+1)
		}
	}

	return DrawBatchCommand{
		Vertices: vertices,
		Indices:  indices,
		Color:    path.Fill.ToF32(),
	}
}
