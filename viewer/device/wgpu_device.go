package device

import (
	"errors"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/quillview/quillview/common"
	"github.com/quillview/quillview/viewer/camera"
	"github.com/quillview/quillview/viewer/scenes"
	"github.com/quillview/quillview/viewer/stats"
)

// sceneFramebuffer is a texture-backed offscreen render target with its own
// depth buffer.
type sceneFramebuffer struct {
	texture   *wgpu.Texture
	view      *wgpu.TextureView
	depthView *wgpu.TextureView
	size      common.Point2I
}

func (*sceneFramebuffer) isFramebuffer() {}

type batchUniforms struct {
	Transform common.Mat4
	Color     [4]float32
}

type reprojectUniforms struct {
	OldTransform common.Mat4
	NewTransform common.Mat4
}

type wgpuDevice struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat    wgpu.TextureFormat
	mainSize         common.Point2I
	depthTexture     *wgpu.Texture
	depthTextureView *wgpu.TextureView

	uniformLayout   *wgpu.BindGroupLayout
	reprojectLayout *wgpu.BindGroupLayout
	sampler         *wgpu.Sampler

	batchPipeline      *wgpu.RenderPipeline
	batchDepthPipeline *wgpu.RenderPipeline
	groundPipeline     *wgpu.RenderPipeline
	gridPipeline       *wgpu.RenderPipeline
	reprojectPipeline  *wgpu.RenderPipeline

	mode         RenderMode
	depthEnabled bool
	dest         Framebuffer
	viewport     common.RectI

	// Frame state between BeginScene and EndScene.
	frameEncoder   *wgpu.CommandEncoder
	framePass      *wgpu.RenderPassEncoder
	frameTransform common.Mat4
	frameStart     time.Time
	transient      []*wgpu.Buffer

	// Acquired surface texture, held until Present.
	surfaceTexture *wgpu.Texture
	surfaceView    *wgpu.TextureView

	timings []time.Duration
	counts  stats.RenderStats
}

var _ Device = &wgpuDevice{}

// NewDevice creates a WebGPU device rendering to the given surface.
//
// Parameters:
//   - surfaceDescriptor: the window surface to render to
//   - size: the initial surface size in device pixels
//
// Returns:
//   - Device: the newly created device
//   - error: non-nil if no suitable adapter or device is available
func NewDevice(surfaceDescriptor *wgpu.SurfaceDescriptor, size common.Point2I) (Device, error) {
	runtime.LockOSThread()
	d := &wgpuDevice{
		mu:       &sync.Mutex{},
		instance: wgpu.CreateInstance(nil),
		mode:     MulticolorMode{},
	}
	d.surface = d.instance.CreateSurface(surfaceDescriptor)

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: d.surface,
	})
	if err != nil {
		return nil, err
	}
	d.adapter = adapter

	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		return nil, err
	}
	d.device = dev
	d.queue = dev.GetQueue()

	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]

	if err := d.createPipelines(); err != nil {
		return nil, err
	}

	d.SetMainFramebufferSize(size)
	return d, nil
}

func (d *wgpuDevice) createPipelines() error {
	uniformLayout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Uniform Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeUniform,
				},
			},
		},
	})
	if err != nil {
		return err
	}
	d.uniformLayout = uniformLayout

	reprojectLayout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Reproject Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeUniform,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		return err
	}
	d.reprojectLayout = reprojectLayout

	sampler, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Reproject Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}
	d.sampler = sampler

	batchModule, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Batch Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: batchShaderSource},
	})
	if err != nil {
		return err
	}
	groundModule, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Ground Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: groundShaderSource},
	})
	if err != nil {
		return err
	}
	reprojectModule, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Reproject Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: reprojectShaderSource},
	})
	if err != nil {
		return err
	}

	vec2Layout := []wgpu.VertexBufferLayout{
		{
			ArrayStride: 8,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			},
		},
	}
	vec3Layout := []wgpu.VertexBufferLayout{
		{
			ArrayStride: 12,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			},
		},
	}

	d.batchPipeline, err = d.createRenderPipeline("Batch", batchModule, d.uniformLayout,
		vec2Layout, wgpu.PrimitiveTopologyTriangleList, false)
	if err != nil {
		return err
	}
	d.batchDepthPipeline, err = d.createRenderPipeline("Batch Depth", batchModule, d.uniformLayout,
		vec2Layout, wgpu.PrimitiveTopologyTriangleList, true)
	if err != nil {
		return err
	}
	d.groundPipeline, err = d.createRenderPipeline("Ground", groundModule, d.uniformLayout,
		vec3Layout, wgpu.PrimitiveTopologyTriangleList, true)
	if err != nil {
		return err
	}
	d.gridPipeline, err = d.createRenderPipeline("Gridlines", groundModule, d.uniformLayout,
		vec3Layout, wgpu.PrimitiveTopologyLineList, true)
	if err != nil {
		return err
	}
	d.reprojectPipeline, err = d.createRenderPipeline("Reproject", reprojectModule, d.reprojectLayout,
		vec2Layout, wgpu.PrimitiveTopologyTriangleList, false)
	if err != nil {
		return err
	}
	return nil
}

func (d *wgpuDevice) createRenderPipeline(
	label string,
	module *wgpu.ShaderModule,
	layout *wgpu.BindGroupLayout,
	vertexLayouts []wgpu.VertexBufferLayout,
	topology wgpu.PrimitiveTopology,
	depthTest bool,
) (*wgpu.RenderPipeline, error) {
	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return nil, err
	}

	depthCompare := wgpu.CompareFunctionAlways
	if depthTest {
		depthCompare = wgpu.CompareFunctionLess
	}

	return d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  label + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format: d.surfaceFormat,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
						Alpha: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
					},
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: depthTest,
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
}

func (d *wgpuDevice) SetMainFramebufferSize(size common.Point2I) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mainSize = size
	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
		Format:      d.surfaceFormat,
		Width:       uint32(size.X),
		Height:      uint32(size.Y),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	// The previous depth attachment is dropped before a replacement is
	// created; resizes would otherwise accumulate GPU textures.
	if d.depthTextureView != nil {
		d.depthTextureView.Release()
		d.depthTextureView = nil
	}
	if d.depthTexture != nil {
		d.depthTexture.Release()
		d.depthTexture = nil
	}

	depthTexture, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(size.X),
			Height:             uint32(size.Y),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		panic(err)
	}
	d.depthTexture = depthTexture
	d.depthTextureView, err = depthTexture.CreateView(nil)
	if err != nil {
		panic(err)
	}
}

func (d *wgpuDevice) SetRenderMode(mode RenderMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = mode
}

func (d *wgpuDevice) EnableDepth() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depthEnabled = true
}

func (d *wgpuDevice) DisableDepth() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depthEnabled = false
}

func (d *wgpuDevice) SetViewport(viewport common.RectI) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewport = viewport
}

// applyViewportLocked restricts a freshly opened render pass to the viewport,
// if one is set.
func (d *wgpuDevice) applyViewportLocked(pass *wgpu.RenderPassEncoder) {
	if d.viewport.Size.X == 0 || d.viewport.Size.Y == 0 {
		return
	}
	pass.SetViewport(
		float32(d.viewport.Origin.X), float32(d.viewport.Origin.Y),
		float32(d.viewport.Size.X), float32(d.viewport.Size.Y),
		0, 1,
	)
}

func (d *wgpuDevice) ReplaceDestFramebuffer(framebuffer Framebuffer) Framebuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	previous := d.dest
	d.dest = framebuffer
	return previous
}

func (d *wgpuDevice) CreateSceneFramebuffer(size common.Point2I) (Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	texture, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Scene Framebuffer",
		Size: wgpu.Extent3D{
			Width:              uint32(size.X),
			Height:             uint32(size.Y),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        d.surfaceFormat,
		Usage: wgpu.TextureUsageRenderAttachment |
			wgpu.TextureUsageTextureBinding |
			wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		return nil, err
	}

	depthTexture, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Scene Framebuffer Depth",
		Size: wgpu.Extent3D{
			Width:              uint32(size.X),
			Height:             uint32(size.Y),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, err
	}
	depthView, err := depthTexture.CreateView(nil)
	if err != nil {
		return nil, err
	}

	return &sceneFramebuffer{texture: texture, view: view, depthView: depthView, size: size}, nil
}

func (d *wgpuDevice) FramebufferSize(framebuffer Framebuffer) common.Point2I {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fb, ok := framebuffer.(*sceneFramebuffer); ok {
		return fb.size
	}
	return d.mainSize
}

// destViewLocked resolves the current destination's texture view, acquiring
// the surface texture when the destination is the window.
func (d *wgpuDevice) destViewLocked() (*wgpu.TextureView, error) {
	if fb, ok := d.dest.(*sceneFramebuffer); ok {
		return fb.view, nil
	}
	if d.surfaceView == nil {
		texture, err := d.surface.GetCurrentTexture()
		if err != nil {
			return nil, err
		}
		view, err := texture.CreateView(nil)
		if err != nil {
			return nil, err
		}
		d.surfaceTexture = texture
		d.surfaceView = view
	}
	return d.surfaceView, nil
}

func (d *wgpuDevice) destSizeLocked() common.Point2I {
	if fb, ok := d.dest.(*sceneFramebuffer); ok {
		return fb.size
	}
	return d.mainSize
}

func (d *wgpuDevice) destDepthViewLocked() *wgpu.TextureView {
	if fb, ok := d.dest.(*sceneFramebuffer); ok {
		return fb.depthView
	}
	return d.depthTextureView
}

func (d *wgpuDevice) Clear(color *common.ColorF) {
	d.mu.Lock()
	defer d.mu.Unlock()

	view, err := d.destViewLocked()
	if err != nil {
		return
	}
	clear := wgpu.Color{}
	if color != nil {
		clear = wgpu.Color{R: float64(color.R), G: float64(color.G), B: float64(color.B), A: float64(color.A)}
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: clear,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            d.destDepthViewLocked(),
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})
	pass.End()
	d.submitEncoder(encoder)
}

func (d *wgpuDevice) BeginScene(transform camera.RenderTransform) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	view, err := d.destViewLocked()
	if err != nil {
		return err
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}

	d.frameEncoder = encoder
	d.framePass = encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    view,
				LoadOp:  wgpu.LoadOpLoad,
				StoreOp: wgpu.StoreOpStore,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            d.destDepthViewLocked(),
			DepthLoadOp:     wgpu.LoadOpLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})
	d.applyViewportLocked(d.framePass)
	d.frameTransform = d.clipTransformLocked(transform)
	d.frameStart = time.Now()
	return nil
}

// clipTransformLocked converts a camera transform into the clip-space matrix
// the shaders consume. 2D transforms map scene coordinates to device pixels
// and need the extra pixel-to-NDC step; perspective transforms are already in
// clip space.
func (d *wgpuDevice) clipTransformLocked(transform camera.RenderTransform) common.Mat4 {
	switch t := transform.(type) {
	case camera.Transform2D:
		size := d.destSizeLocked()
		ndc := common.NewTranslation(-1, 1, 0).
			Mul(common.NewScaling(2/float32(size.X), -2/float32(size.Y), 1))
		return ndc.Mul(t.Matrix.Mat4())
	case camera.Perspective:
		return t.Matrix
	default:
		return common.IdentityMat4()
	}
}

func (d *wgpuDevice) RenderCommand(command scenes.Command) {
	d.mu.Lock()
	defer d.mu.Unlock()

	batch, ok := command.(scenes.DrawBatchCommand)
	if !ok || d.framePass == nil || len(batch.Indices) == 0 {
		return
	}

	color := batch.Color
	if mono, ok := d.mode.(MonochromeMode); ok {
		color = mono.FGColor
	}

	pipeline := d.batchPipeline
	if d.depthEnabled {
		pipeline = d.batchDepthPipeline
	}
	d.drawLocked(pipeline, batch.Vertices, batch.Indices, d.frameTransform, color)

	d.counts.PathCount++
	d.counts.FillCount += len(batch.Indices) / 3
	d.counts.SolidTileCount += len(batch.Vertices) / 2
}

// drawLocked uploads one transient geometry batch and records its draw call
// on the open render pass.
func (d *wgpuDevice) drawLocked(
	pipeline *wgpu.RenderPipeline,
	vertices []float32,
	indices []uint32,
	transform common.Mat4,
	color common.ColorF,
) {
	vertexBuffer, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Batch Vertex Buffer",
		Size:  uint64(len(vertices) * 4),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return
	}
	d.queue.WriteBuffer(vertexBuffer, 0, common.SliceToBytes(vertices))

	indexBuffer, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Batch Index Buffer",
		Size:  uint64(len(indices) * 4),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return
	}
	d.queue.WriteBuffer(indexBuffer, 0, common.SliceToBytes(indices))

	uniforms := batchUniforms{
		Transform: transform,
		Color:     [4]float32{color.R, color.G, color.B, color.A},
	}
	uniformBuffer, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Batch Uniform Buffer",
		Size:  uint64(len(common.StructToBytes(&uniforms))),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return
	}
	d.queue.WriteBuffer(uniformBuffer, 0, common.StructToBytes(&uniforms))

	bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Batch Bind Group",
		Layout: d.uniformLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: uniformBuffer, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return
	}

	d.framePass.SetPipeline(pipeline)
	d.framePass.SetBindGroup(0, bindGroup, nil)
	d.framePass.SetVertexBuffer(0, vertexBuffer, 0, wgpu.WholeSize)
	d.framePass.SetIndexBuffer(indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	d.framePass.DrawIndexed(uint32(len(indices)), 1, 0, 0, 0)

	d.transient = append(d.transient, vertexBuffer, indexBuffer, uniformBuffer)
}

func (d *wgpuDevice) DrawGroundPlane(transform common.Mat4, viewBox common.Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.framePass == nil {
		return
	}

	// The plane sits at y=0, spanning twice the view box around its center.
	side := 2 * viewBox.Size.Min()
	center := viewBox.Center()
	minX, minZ := center.X-side/2, center.Y-side/2
	maxX, maxZ := center.X+side/2, center.Y+side/2

	solid := []float32{
		minX, 0, minZ,
		maxX, 0, minZ,
		maxX, 0, maxZ,
		minX, 0, maxZ,
	}
	solidIndices := []uint32{0, 1, 2, 0, 2, 3}
	d.drawLocked(d.groundPipeline, solid, solidIndices, transform, common.GroundSolidColor.ToF32())

	var lines []float32
	var lineIndices []uint32
	for i := 0; i <= common.GridlineCount; i++ {
		t := float32(i) / common.GridlineCount
		x := minX + t*side
		z := minZ + t*side
		base := uint32(len(lines) / 3)
		lines = append(lines,
			x, 0, minZ,
			x, 0, maxZ,
			minX, 0, z,
			maxX, 0, z,
		)
		lineIndices = append(lineIndices, base, base+1, base+2, base+3)
	}
	d.drawLocked(d.gridPipeline, lines, lineIndices, transform, common.GroundLineColor.ToF32())
}

func (d *wgpuDevice) EndScene() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.framePass == nil {
		return
	}
	d.framePass.End()
	d.framePass = nil

	d.submitEncoder(d.frameEncoder)
	d.frameEncoder = nil

	for _, buf := range d.transient {
		buf.Release()
	}
	d.transient = nil

	d.timings = append(d.timings, time.Since(d.frameStart))
}

func (d *wgpuDevice) submitEncoder(encoder *wgpu.CommandEncoder) {
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()
}

func (d *wgpuDevice) ReprojectTexture(framebuffer Framebuffer, src, dst common.Mat4) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fb, ok := framebuffer.(*sceneFramebuffer)
	if !ok {
		return
	}
	view, err := d.destViewLocked()
	if err != nil {
		return
	}

	uniforms := reprojectUniforms{OldTransform: src, NewTransform: dst}
	uniformBuffer, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Reproject Uniform Buffer",
		Size:  uint64(len(common.StructToBytes(&uniforms))),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return
	}
	d.queue.WriteBuffer(uniformBuffer, 0, common.StructToBytes(&uniforms))

	// Quad in the z=0 scene plane, in NDC of the source render.
	vertices := []float32{-1, -1, 1, -1, 1, 1, -1, 1}
	indices := []uint32{0, 1, 2, 0, 2, 3}

	vertexBuffer, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Reproject Vertex Buffer",
		Size:  uint64(len(vertices) * 4),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return
	}
	d.queue.WriteBuffer(vertexBuffer, 0, common.SliceToBytes(vertices))

	indexBuffer, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Reproject Index Buffer",
		Size:  uint64(len(indices) * 4),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return
	}
	d.queue.WriteBuffer(indexBuffer, 0, common.SliceToBytes(indices))

	bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Reproject Bind Group",
		Layout: d.reprojectLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: uniformBuffer, Size: wgpu.WholeSize},
			{Binding: 1, TextureView: fb.view, Size: wgpu.WholeSize},
			{Binding: 2, Sampler: d.sampler, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    view,
				LoadOp:  wgpu.LoadOpLoad,
				StoreOp: wgpu.StoreOpStore,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            d.destDepthViewLocked(),
			DepthLoadOp:     wgpu.LoadOpLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})
	d.applyViewportLocked(pass)
	pass.SetPipeline(d.reprojectPipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.SetVertexBuffer(0, vertexBuffer, 0, wgpu.WholeSize)
	pass.SetIndexBuffer(indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	pass.DrawIndexed(uint32(len(indices)), 1, 0, 0, 0)
	pass.End()
	d.submitEncoder(encoder)

	vertexBuffer.Release()
	indexBuffer.Release()
	uniformBuffer.Release()
}

func (d *wgpuDevice) Present() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surfaceTexture == nil {
		return
	}
	d.surface.Present()
	d.surfaceView.Release()
	d.surfaceTexture.Release()
	d.surfaceView = nil
	d.surfaceTexture = nil
}

func (d *wgpuDevice) ReadPixels(viewport common.RectI) (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var texture *wgpu.Texture
	if fb, ok := d.dest.(*sceneFramebuffer); ok {
		texture = fb.texture
	} else {
		texture = d.surfaceTexture
	}
	if texture == nil {
		return nil, errors.New("no rendered frame to read")
	}

	width := int(viewport.Size.X)
	height := int(viewport.Size.Y)

	// Rows must be 256-byte aligned for texture-to-buffer copies.
	bytesPerRow := (uint32(width*4) + 255) &^ 255
	bufferSize := uint64(bytesPerRow) * uint64(height)

	readback, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Screenshot Buffer",
		Size:  bufferSize,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer readback.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: uint32(viewport.Origin.X), Y: uint32(viewport.Origin.Y)},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: readback,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  bytesPerRow,
				RowsPerImage: uint32(height),
			},
		},
		&wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
	)
	d.submitEncoder(encoder)

	var status wgpu.BufferMapAsyncStatus
	if err := readback.MapAsync(wgpu.MapModeRead, 0, bufferSize, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, err
	}
	d.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, errors.New("screenshot readback failed: " + status.String())
	}
	mapped := readback.GetMappedRange(0, uint(bufferSize))

	swapRB := d.surfaceFormat == wgpu.TextureFormatBGRA8Unorm ||
		d.surfaceFormat == wgpu.TextureFormatBGRA8UnormSrgb

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := mapped[uint32(y)*bytesPerRow:]
		for x := 0; x < width; x++ {
			r, g, b, a := row[x*4], row[x*4+1], row[x*4+2], row[x*4+3]
			if swapRB {
				r, b = b, r
			}
			offset := img.PixOffset(x, y)
			img.Pix[offset] = r
			img.Pix[offset+1] = g
			img.Pix[offset+2] = b
			img.Pix[offset+3] = a
		}
	}
	readback.Unmap()
	return img, nil
}

func (d *wgpuDevice) Stats() stats.RenderStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts
}

func (d *wgpuDevice) ResetStats() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts = stats.RenderStats{}
}

func (d *wgpuDevice) ShiftTimerQuery() (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.timings) == 0 {
		return 0, false
	}
	timing := d.timings[0]
	d.timings = d.timings[1:]
	return timing, true
}
