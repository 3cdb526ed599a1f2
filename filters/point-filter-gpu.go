package filters

import (
	_ "embed"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/chanswap"
)

//go:embed point-filter-gpu.wgsl
var baseShaderWGSL string

// PointFilterGPU applies a per-pixel GPU compute shader transformation to RGBA8888 images.
// Embed this in concrete filter implementations and provide a transform function in WGSL.
type PointFilterGPU struct {
	mu     sync.Mutex
	gpu    gpuResources
	Params [4]float32 // Uniform params: [0]=width, [1]=height, [2..3]=user params
	upload []byte
	inited bool
}

type gpuResources struct {
	device        *wgpu.Device
	queue         *wgpu.Queue
	shaderModule  *wgpu.ShaderModule
	pipeline      *wgpu.ComputePipeline
	bindLayout    *wgpu.BindGroupLayout
	uniformBuffer *wgpu.Buffer
	inputBuffer   *wgpu.Buffer
	outputBuffer  *wgpu.Buffer
	width, height int
}

var errGPUNotInitialized = errors.New("gpu filter not initialized")

// Init initializes GPU resources with the given transform WGSL code.
// transformCode should define: fn transform(c: vec4<f32>) -> vec4<f32>
func (f *PointFilterGPU) Init(device *wgpu.Device, queue *wgpu.Queue, transformCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fullShader := strings.Replace(baseShaderWGSL, "// TRANSFORM_PLACEHOLDER", transformCode, 1)

	f.gpu.device = device
	f.gpu.queue = queue

	var err error
	f.gpu.shaderModule, err = device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: fullShader},
	})
	if err != nil {
		return fmt.Errorf("shader module: %w", err)
	}

	f.gpu.pipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     f.gpu.shaderModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("compute pipeline: %w", err)
	}

	f.gpu.bindLayout = f.gpu.pipeline.GetBindGroupLayout(0)

	f.gpu.uniformBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  16, // 4 x float32
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("uniform buffer: %w", err)
	}

	f.inited = true
	return nil
}

// ShapeIO implements [chanswap.Filter]. The GPU path only handles RGBA8888.
func (f *PointFilterGPU) ShapeIO() (output, input chanswap.Shape) {
	return chanswap.ShapeRGBA8888, chanswap.ShapeRGBA8888
}

// Process implements [chanswap.Filter]. ROI is not supported.
func (f *PointFilterGPU) Process(dst []byte, src chanswap.Image, roi *image.Rectangle) (chanswap.Dims, error) {
	if roi != nil {
		return chanswap.Dims{}, errors.New("gpu filter does not support ROI")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.inited {
		return chanswap.Dims{}, errGPUNotInitialized
	}
	srcDims := src.Dims()
	if srcDims.Shape != chanswap.ShapeRGBA8888 {
		return chanswap.Dims{}, errShapeMismatch
	}
	w, h := srcDims.Width, srcDims.Height
	inPlace := dst == nil
	dstDims := chanswap.Dims{Width: w, Height: h, Stride: 4 * w, Shape: chanswap.ShapeRGBA8888}
	if inPlace {
		dstDims.Stride = srcDims.Stride
	}
	dst, _, err := chanswap.ValidateProcessArgs(dst, dstDims, src, nil)
	if err != nil {
		return chanswap.Dims{}, err
	}

	if err := f.ensureBuffers(w, h); err != nil {
		return chanswap.Dims{}, err
	}

	// Upload image data, packing rows when the source stride carries padding.
	rowBytes := 4 * w
	var pix []byte
	if buffered, ok := src.(chanswap.ImageBuffered); ok && srcDims.Stride == rowBytes && buffered.Buffer() != nil {
		pix = buffered.Buffer()[:rowBytes*h]
	} else {
		if cap(f.upload) < rowBytes*h {
			f.upload = make([]byte, rowBytes*h)
		}
		pix = f.upload[:rowBytes*h]
		for y := 0; y < h; y++ {
			row, err := chanswap.ImageRow(pix[y*rowBytes:], src, y)
			if err != nil {
				return chanswap.Dims{}, err
			}
			copy(pix[y*rowBytes:], row)
		}
	}
	f.gpu.queue.WriteBuffer(f.gpu.inputBuffer, 0, pix)

	f.Params[0], f.Params[1] = float32(w), float32(h)
	f.gpu.queue.WriteBuffer(f.gpu.uniformBuffer, 0, wgpu.ToBytes(f.Params[:]))

	if err := f.dispatch(w, h); err != nil {
		return chanswap.Dims{}, err
	}
	if err := f.readback(dst, dstDims.Stride); err != nil {
		return chanswap.Dims{}, err
	}
	return dstDims, nil
}

func (f *PointFilterGPU) ensureBuffers(w, h int) error {
	if w == f.gpu.width && h == f.gpu.height {
		return nil
	}

	f.releaseImageBuffers()

	size := uint64(w * h * 4)
	var err error

	f.gpu.inputBuffer, err = f.gpu.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("input buffer: %w", err)
	}

	f.gpu.outputBuffer, err = f.gpu.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("output buffer: %w", err)
	}

	f.gpu.width, f.gpu.height = w, h
	return nil
}

func (f *PointFilterGPU) dispatch(w, h int) error {
	bindGroup, err := f.gpu.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: f.gpu.bindLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: f.gpu.uniformBuffer, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: f.gpu.inputBuffer, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: f.gpu.outputBuffer, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("bind group: %w", err)
	}
	defer bindGroup.Release()

	encoder, err := f.gpu.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("command encoder: %w", err)
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(f.gpu.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32((w+7)/8), uint32((h+7)/8), 1)
	pass.End()
	pass.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish: %w", err)
	}

	f.gpu.queue.Submit(cmd)
	return nil
}

// readback copies the output buffer into dst rows spaced stride bytes apart.
func (f *PointFilterGPU) readback(dst []byte, stride int) error {
	rowBytes := f.gpu.width * 4
	size := uint64(rowBytes * f.gpu.height)

	staging, err := f.gpu.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("staging buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := f.gpu.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("command encoder: %w", err)
	}
	encoder.CopyBufferToBuffer(f.gpu.outputBuffer, 0, staging, 0, size)
	cmd, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return fmt.Errorf("finish: %w", err)
	}

	f.gpu.queue.Submit(cmd)
	f.gpu.device.Poll(true, nil)

	done := make(chan error, 1)
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done <- fmt.Errorf("map failed: %v", status)
			return
		}
		done <- nil
	})

	f.gpu.device.Poll(true, nil)
	if err := <-done; err != nil {
		return err
	}

	mapped := staging.GetMappedRange(0, uint(size))
	for y := 0; y < f.gpu.height; y++ {
		copy(dst[y*stride:y*stride+rowBytes], mapped[y*rowBytes:])
	}
	staging.Unmap()
	return nil
}

func (f *PointFilterGPU) releaseImageBuffers() {
	if f.gpu.inputBuffer != nil {
		f.gpu.inputBuffer.Release()
		f.gpu.inputBuffer = nil
	}
	if f.gpu.outputBuffer != nil {
		f.gpu.outputBuffer.Release()
		f.gpu.outputBuffer = nil
	}
	f.gpu.width, f.gpu.height = 0, 0
}

// Cleanup releases all GPU resources.
func (f *PointFilterGPU) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.releaseImageBuffers()
	if f.gpu.uniformBuffer != nil {
		f.gpu.uniformBuffer.Release()
	}
	if f.gpu.bindLayout != nil {
		f.gpu.bindLayout.Release()
	}
	if f.gpu.pipeline != nil {
		f.gpu.pipeline.Release()
	}
	if f.gpu.shaderModule != nil {
		f.gpu.shaderModule.Release()
	}
	f.inited = false
}

// SetParam sets a user parameter (index 0 or 1, mapped to Params[2] and Params[3]).
func (f *PointFilterGPU) SetParam(index int, value float32) {
	if index >= 0 && index < 2 {
		f.mu.Lock()
		f.Params[2+index] = value
		f.mu.Unlock()
	}
}

// Controls returns nil; concrete implementations should override.
func (f *PointFilterGPU) Controls() []chanswap.Control { return nil }
