package runner

import (
	"fmt"
	"unsafe"

	"github.com/notargets/CVFEMKernel/partitions"
	"github.com/notargets/CVFEMKernel/runner/builder"
	"github.com/notargets/gocca"
	"gonum.org/v1/gonum/mat"
)

// Runner compiles and launches partition-parallel kernels on one device.
// Arrays live on the device as one global buffer plus a per-partition
// offset table, matching partitions.PartitionedArray on the host.
type Runner struct {
	*builder.Builder
	Device       *gocca.OCCADevice
	Kernels      map[string]*gocca.OCCAKernel
	PooledMemory map[string]*gocca.OCCAMemory
	arraySizes   map[string]int // values per array
	massShape    string
}

// NewRunner allocates the K array on the device
func NewRunner(device *gocca.OCCADevice, cfg builder.Config) (kr *Runner) {
	if device == nil {
		panic("device cannot be nil")
	}
	bld := builder.NewBuilder(cfg)

	if device.Mode() == "CUDA" && bld.KpartMax > 1024 {
		panic(fmt.Sprintf("CUDA @inner limit exceeded: KpartMax=%d but CUDA is limited to 1024 "+
			"threads per @inner loop. Reduce partition sizes.", bld.KpartMax))
	}

	kr = &Runner{
		Builder:      bld,
		Device:       device,
		Kernels:      make(map[string]*gocca.OCCAKernel),
		PooledMemory: make(map[string]*gocca.OCCAMemory),
		arraySizes:   make(map[string]int),
	}
	kr.PooledMemory["K"] = kr.mallocInts(toInt64(bld.K))
	return
}

func toInt64(v []int) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}

func (kr *Runner) mallocInts(v []int64) *gocca.OCCAMemory {
	if kr.IntType == builder.INT32 {
		v32 := make([]int32, len(v))
		for i, x := range v {
			v32[i] = int32(x)
		}
		return kr.Device.Malloc(int64(len(v32)*4), unsafe.Pointer(&v32[0]), nil)
	}
	return kr.Device.Malloc(int64(len(v)*8), unsafe.Pointer(&v[0]), nil)
}

// AllocateArray reserves device memory shaped like pa and uploads its
// offsets. The contents are not copied; use CopyToDevice.
func (kr *Runner) AllocateArray(name string, pa *partitions.PartitionedArray) error {
	if _, exists := kr.arraySizes[name]; exists {
		return fmt.Errorf("array %s already allocated", name)
	}
	if len(pa.Offsets) != kr.NumPartitions+1 {
		return fmt.Errorf("array %s has %d partitions, runner has %d", name, len(pa.Offsets)-1, kr.NumPartitions)
	}
	if len(pa.GlobalData) == 0 {
		return fmt.Errorf("array %s is empty", name)
	}
	kr.PooledMemory[name+"_global"] = kr.Device.Malloc(int64(len(pa.GlobalData)*8), nil, nil)
	kr.PooledMemory[name+"_offsets"] = kr.mallocInts(pa.Offsets)
	kr.arraySizes[name] = len(pa.GlobalData)
	kr.AddArray(name)
	return nil
}

// CopyToDevice uploads the host values of an allocated array
func (kr *Runner) CopyToDevice(name string, pa *partitions.PartitionedArray) error {
	mem, err := kr.memoryFor(name, pa)
	if err != nil {
		return err
	}
	mem.CopyFrom(unsafe.Pointer(&pa.GlobalData[0]), int64(len(pa.GlobalData)*8))
	return nil
}

// CopyFromDevice downloads an allocated array into pa
func (kr *Runner) CopyFromDevice(name string, pa *partitions.PartitionedArray) error {
	mem, err := kr.memoryFor(name, pa)
	if err != nil {
		return err
	}
	mem.CopyTo(unsafe.Pointer(&pa.GlobalData[0]), int64(len(pa.GlobalData)*8))
	return nil
}

func (kr *Runner) memoryFor(name string, pa *partitions.PartitionedArray) (*gocca.OCCAMemory, error) {
	n, exists := kr.arraySizes[name]
	if !exists {
		return nil, fmt.Errorf("array %s not allocated", name)
	}
	if len(pa.GlobalData) != n {
		return nil, fmt.Errorf("array %s holds %d values, host has %d", name, n, len(pa.GlobalData))
	}
	return kr.PooledMemory[name+"_global"], nil
}

// AddStaticMatrix adds a matrix that will be embedded as static const in kernels
func (kr *Runner) AddStaticMatrix(name string, m mat.Matrix) {
	kr.Builder.AddStaticMatrix(name, m)
}

// BuildKernel compiles and registers a kernel with the program
func (kr *Runner) BuildKernel(kernelSource, kernelName string) (*gocca.OCCAKernel, error) {
	fullSource := kr.GeneratePreamble() + "\n" + kernelSource

	var kernel *gocca.OCCAKernel
	var err error
	if kr.Device.Mode() == "OpenMP" {
		// OpenMP does not get -O3 by default
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = kr.Device.BuildKernelFromString(fullSource, kernelName, props)
	} else {
		kernel, err = kr.Device.BuildKernelFromString(fullSource, kernelName, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", kernelName, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", kernelName)
	}
	if old, exists := kr.Kernels[kernelName]; exists {
		old.Free()
	}
	kr.Kernels[kernelName] = kernel
	return kernel, nil
}

// RunKernel launches a kernel and waits for it. String arguments name
// allocated arrays and expand to their global and offset buffers; other
// arguments are passed through.
func (kr *Runner) RunKernel(name string, args ...interface{}) error {
	kernel, exists := kr.Kernels[name]
	if !exists {
		return fmt.Errorf("kernel %s not found", name)
	}
	expanded, err := kr.expandKernelArgs(args)
	if err != nil {
		return fmt.Errorf("kernel %s: %w", name, err)
	}
	if err := kernel.RunWithArgs(expanded...); err != nil {
		return fmt.Errorf("kernel %s execution failed: %w", name, err)
	}
	kr.Device.Finish()
	return nil
}

func (kr *Runner) expandKernelArgs(args []interface{}) ([]interface{}, error) {
	expanded := []interface{}{kr.PooledMemory["K"]}
	for _, arg := range args {
		v, isName := arg.(string)
		if !isName {
			expanded = append(expanded, arg)
			continue
		}
		globalMem, hasGlobal := kr.PooledMemory[v+"_global"]
		offsetMem, hasOffset := kr.PooledMemory[v+"_offsets"]
		if !hasGlobal || !hasOffset {
			return nil, fmt.Errorf("array %s not allocated", v)
		}
		expanded = append(expanded, globalMem, offsetMem)
	}
	return expanded, nil
}

// Free releases all resources
func (kr *Runner) Free() {
	for _, kernel := range kr.Kernels {
		kernel.Free()
	}
	for _, mem := range kr.PooledMemory {
		mem.Free()
	}
	kr.Kernels = make(map[string]*gocca.OCCAKernel)
	kr.PooledMemory = make(map[string]*gocca.OCCAMemory)
	kr.arraySizes = make(map[string]int)
}
