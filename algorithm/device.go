package algorithm

import (
	"fmt"

	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/kernel"
	"github.com/notargets/CVFEMKernel/linsys"
	"github.com/notargets/CVFEMKernel/mesh"
	"github.com/notargets/CVFEMKernel/partitions"
	"github.com/notargets/CVFEMKernel/runner"
	"github.com/notargets/CVFEMKernel/runner/builder"
	"github.com/notargets/CVFEMKernel/timeint"
	"github.com/notargets/gocca"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// DeviceMassSpec configures the scalar mass term run on a device
type DeviceMassSpec struct {
	Scalar     string
	Lumped     bool
	Relaxation float64
	// PartitionSize is the target number of elements per device partition
	PartitionSize int
}

// DeviceElemAlgorithm computes the scalar mass term of the selected
// elements on an OCCA device. The host gathers the nodal values and SCV
// volumes into partitioned arrays, the device fills the local systems and
// the host scatters them in selection order.
type DeviceElemAlgorithm struct {
	lifecycle
	name   string
	bulk   *mesh.Bulk
	reg    *field.Registry
	sys    *linsys.System
	opts   Options
	spec   DeviceMassSpec
	sel    *selection
	device *gocca.OCCADevice
	me     element.MasterElement
	coords field.Ordinal
	// q and rho at N-1, N, N+1
	states [6]field.Ordinal

	layout          *partitions.PartitionLayout
	run             *runner.Runner
	in, out         *partitions.PartitionedArray
	hostIn, hostOut []float64
	scratch         [][]float64 // per worker coordinates then volumes
	ws              []*element.Workspace
	coeffs          [5]float64  // dt, gamma1..3, relax
}

func NewDeviceElemAlgorithm(name string, device *gocca.OCCADevice, bulk *mesh.Bulk, sys *linsys.System,
	opts Options, spec DeviceMassSpec, parts ...string) (*DeviceElemAlgorithm, error) {
	reg := bulk.Fields()
	if reg == nil {
		return nil, fmt.Errorf("%s: mesh not committed", name)
	}
	if device == nil {
		return nil, fmt.Errorf("%s: no device", name)
	}
	if sys == nil || sys.NumNodes != bulk.NumNodes || sys.BlockSize != 1 {
		return nil, fmt.Errorf("%s: need a scalar system over the %d mesh nodes", name, bulk.NumNodes)
	}
	if spec.Relaxation == 0 {
		spec.Relaxation = 1
	}
	if spec.PartitionSize < 1 {
		spec.PartitionSize = 256
	}
	a := &DeviceElemAlgorithm{
		name: name, bulk: bulk, reg: reg, sys: sys,
		opts: opts.withDefaults(), spec: spec, device: device,
	}
	var err error
	if a.sel, err = selectEntities(bulk, field.ElemRank, parts); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if a.me, err = element.GetVolumeMasterElement(a.sel.topo); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if a.coords, err = coordinates(reg, a.opts); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	for i, fieldName := range []string{spec.Scalar, kernel.DensityName} {
		nm1, n, np1, err := resolveStates(reg, fieldName)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		a.states[3*i], a.states[3*i+1], a.states[3*i+2] = nm1, n, np1
	}
	return a, nil
}

func resolveStates(reg *field.Registry, name string) (nm1, n, np1 field.Ordinal, err error) {
	if np1, err = reg.ResolveRank(name, field.NodeRank, field.StateNP1); err != nil {
		return
	}
	if c := reg.Components(np1); c != 1 {
		err = fmt.Errorf("field %s has %d components, want 1: %w", name, c, kernel.ErrRequirementMismatch)
		return
	}
	n, _ = reg.Resolve(name, field.StateN)
	nm1, _ = reg.Resolve(name, field.StateNM1)
	return
}

func (a *DeviceElemAlgorithm) Name() string { return a.name }

// Setup builds the partition layout and compiles the kernel on first use
func (a *DeviceElemAlgorithm) Setup(ti timeint.TimeIntegrator) error {
	if err := timeint.Validate(ti); err != nil {
		return fmt.Errorf("%s: %w", a.name, err)
	}
	if a.run == nil {
		if err := a.build(); err != nil {
			a.Free()
			return fmt.Errorf("%s: %w", a.name, err)
		}
	}
	a.coeffs = [5]float64{ti.TimeStep(), ti.Gamma1(), ti.Gamma2(), ti.Gamma3(), a.spec.Relaxation}
	return a.setup(ti)
}

func (a *DeviceElemAlgorithm) build() error {
	pb := &partitions.PartitionBuilder{
		Mesh: &partitions.MeshConnectivity{
			NumEntities: a.sel.size(),
			EntityNodes: a.sel.nodes,
		},
		TargetPartitionSize: a.spec.PartitionSize,
		Strategy:            partitions.GraphPartition,
	}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return err
	}
	a.layout = layout
	npe := a.me.NodesPerElement()
	a.in = partitions.AllocatePartitionedArray(layout, runner.MassInputStride(npe))
	a.out = partitions.AllocatePartitionedArray(layout, runner.MassOutputStride(npe))
	a.hostIn = make([]float64, a.sel.size()*runner.MassInputStride(npe))
	a.hostOut = make([]float64, a.sel.size()*runner.MassOutputStride(npe))
	a.scratch = make([][]float64, a.opts.NumWorkers)
	a.ws = make([]*element.Workspace, a.opts.NumWorkers)
	for w := range a.scratch {
		a.ws[w] = element.NewWorkspace(a.bulk.NDim)
		a.scratch[w] = make([]float64, npe*a.bulk.NDim+a.me.NumScvIp())
	}

	a.run = runner.NewRunner(a.device, builder.Config{K: layout.K()})
	a.run.AddMassTables(a.me, a.spec.Lumped)
	if err := a.run.AllocateArray(runner.MassInputArray, a.in); err != nil {
		return err
	}
	if err := a.run.AllocateArray(runner.MassOutputArray, a.out); err != nil {
		return err
	}
	if _, err := a.run.BuildKernel(a.run.MassKernelSource(npe), runner.MassKernelName); err != nil {
		return err
	}
	a.opts.Log.WithFields(logrus.Fields{
		"algorithm":  a.name,
		"device":     a.device.Mode(),
		"elements":   a.sel.size(),
		"partitions": layout.NumPartitions,
		"kpartMax":   layout.KpartMax,
	}).Debug("device kernel built")
	return nil
}

func (a *DeviceElemAlgorithm) Execute() error {
	if err := a.begin(a.name); err != nil {
		return err
	}
	npe, nDim := a.me.NodesPerElement(), a.bulk.NDim
	inStride, outStride := runner.MassInputStride(npe), runner.MassOutputStride(npe)

	xs := a.reg.Data(a.coords)
	forEach(a.sel.all()[0], len(a.scratch), func(w, i int) {
		nodes := a.sel.nodes[i]
		buf := a.scratch[w]
		coords, vol := buf[:npe*nDim], buf[npe*nDim:]
		for n, node := range nodes {
			copy(coords[n*nDim:(n+1)*nDim], xs[node*nDim:(node+1)*nDim])
		}
		a.me.ScvVolumes(a.ws[w], coords, vol)
		dst := a.hostIn[i*inStride : (i+1)*inStride]
		for s, ord := range a.states {
			data := a.reg.Data(ord)
			for n, node := range nodes {
				dst[s*npe+n] = data[node]
			}
		}
		copy(dst[6*npe:], vol)
	})

	a.in.Pack(a.layout, a.hostIn)
	if err := a.run.CopyToDevice(runner.MassInputArray, a.in); err != nil {
		return fmt.Errorf("%s: %w", a.name, err)
	}
	c := a.coeffs
	if err := a.run.RunKernel(runner.MassKernelName, runner.MassInputArray, runner.MassOutputArray,
		c[0], c[1], c[2], c[3], c[4]); err != nil {
		return fmt.Errorf("%s: %w", a.name, err)
	}
	if err := a.run.CopyFromDevice(runner.MassOutputArray, a.out); err != nil {
		return fmt.Errorf("%s: %w", a.name, err)
	}
	a.out.Unpack(a.layout, a.hostOut)

	for i, nodes := range a.sel.nodes {
		local := a.hostOut[i*outStride : (i+1)*outStride]
		lhs := mat.NewDense(npe, npe, local[:npe*npe])
		a.sys.SumInto(nodes, lhs, local[npe*npe:])
	}
	a.done()
	return nil
}

// Free releases the device memory and kernels
func (a *DeviceElemAlgorithm) Free() {
	if a.run != nil {
		a.run.Free()
		a.run = nil
	}
}
