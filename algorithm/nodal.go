package algorithm

import (
	"fmt"

	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/kernel"
	"github.com/notargets/CVFEMKernel/mesh"
	"github.com/notargets/CVFEMKernel/parallel"
	"github.com/notargets/CVFEMKernel/timeint"
	"github.com/sirupsen/logrus"
)

// The drivers in this file compute fields instead of assembling a system.
// Element and face loops that add into nodal fields run colored; the
// results are then summed over the copies of shared nodes.

func coordinates(reg *field.Registry, opts Options) (field.Ordinal, error) {
	return reg.ResolveRank(opts.Coordinates, field.NodeRank, field.StateNP1)
}

// DualVolumeDriver sums the sub-control volumes of the selected elements
// into the dual nodal volume
type DualVolumeDriver struct {
	lifecycle
	opts    Options
	comm    parallel.Communicator
	sweep   *sweep
	me      element.MasterElement
	dualVol field.Ordinal
	groups  [][]int
	nodes   []int
}

func NewDualVolumeDriver(bulk *mesh.Bulk, comm parallel.Communicator, opts Options,
	parts ...string) (*DualVolumeDriver, error) {
	const name = "dual nodal volume"
	reg := bulk.Fields()
	if reg == nil {
		return nil, fmt.Errorf("%s: mesh not committed", name)
	}
	opts = opts.withDefaults()
	sel, err := selectEntities(bulk, field.ElemRank, parts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	d := &DualVolumeDriver{opts: opts, comm: comm, sweep: newSweep(sel, reg, bulk.NDim)}
	if d.me, err = element.GetVolumeMasterElement(sel.topo); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	f, err := reg.Declare(kernel.DualVolumeName, field.NodeRank, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	d.dualVol = f.Ordinal(field.StateNP1)
	coords, err := coordinates(reg, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	req := d.sweep.req
	req.AddCoordinatesField(coords, bulk.NDim)
	req.AddCVFEMVolumeME(d.me)
	req.AddMasterElementCall(kernel.SCVVolume)
	d.nodes = sel.selectedNodes(bulk.NumNodes)
	return d, nil
}

func (d *DualVolumeDriver) Name() string { return "dual nodal volume" }

func (d *DualVolumeDriver) Setup(ti timeint.TimeIntegrator) error {
	if err := d.sweep.prepare(d.opts.NumWorkers); err != nil {
		return fmt.Errorf("%s: %w", d.Name(), err)
	}
	if d.groups == nil {
		groups, err := d.sweep.sel.color(d.opts.Coloring)
		if err != nil {
			return fmt.Errorf("%s: %w", d.Name(), err)
		}
		d.groups = groups
	}
	return d.setup(ti)
}

func (d *DualVolumeDriver) Execute() error {
	if err := d.begin(d.Name()); err != nil {
		return err
	}
	reg := d.sweep.reg
	dv := reg.Data(d.dualVol)
	for _, n := range d.nodes {
		dv[n] = 0
	}
	ipNodeMap := d.me.IpNodeMap()
	d.sweep.run(d.groups, func(_ int, sv *kernel.ScratchViews) {
		for ip, v := range sv.ScvVolume {
			dv[sv.Nodes[ipNodeMap[ip]]] += v
		}
	})
	if err := d.comm.ParallelSum(reg, kernel.DualVolumeName); err != nil {
		return fmt.Errorf("%s: %w", d.Name(), err)
	}
	d.done()
	return nil
}

// ExposedAreaDriver stores the outward area vector of every boundary face
// ip in the face field read by the face kernels
type ExposedAreaDriver struct {
	lifecycle
	opts   Options
	sweep  *sweep
	fe     element.FaceMasterElement
	areaID field.Ordinal
}

func NewExposedAreaDriver(bulk *mesh.Bulk, opts Options, parts ...string) (*ExposedAreaDriver, error) {
	const name = "exposed area"
	reg := bulk.Fields()
	if reg == nil {
		return nil, fmt.Errorf("%s: mesh not committed", name)
	}
	opts = opts.withDefaults()
	sel, err := selectEntities(bulk, field.FaceRank, parts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	d := &ExposedAreaDriver{opts: opts, sweep: newSweep(sel, reg, bulk.NDim)}
	if d.fe, err = element.GetFaceMasterElement(sel.topo); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	f, err := reg.Declare(kernel.ExposedAreaName, field.FaceRank, d.fe.NumFaceIp()*bulk.NDim, 1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	d.areaID = f.Ordinal(field.StateNP1)
	coords, err := coordinates(reg, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	req := d.sweep.req
	req.AddCoordinatesField(coords, bulk.NDim)
	req.AddCVFEMFaceME(d.fe)
	req.AddMasterElementCall(kernel.FaceExposedArea)
	return d, nil
}

func (d *ExposedAreaDriver) Name() string { return "exposed area" }

func (d *ExposedAreaDriver) Setup(ti timeint.TimeIntegrator) error {
	if err := d.sweep.prepare(d.opts.NumWorkers); err != nil {
		return fmt.Errorf("%s: %w", d.Name(), err)
	}
	return d.setup(ti)
}

// Execute writes each face's own entry, so faces run without coloring
func (d *ExposedAreaDriver) Execute() error {
	if err := d.begin(d.Name()); err != nil {
		return err
	}
	reg := d.sweep.reg
	d.sweep.run(d.sweep.sel.all(), func(_ int, sv *kernel.ScratchViews) {
		copy(reg.Entity(d.areaID, sv.Index), sv.ExposedAreav)
	})
	d.done()
	return nil
}

// NodalGradSpec names the fields and parts of a nodal gradient
type NodalGradSpec struct {
	Scalar   string
	Gradient string
	// ElemParts are the interior; FaceParts close the control volumes on
	// the boundary
	ElemParts []string
	FaceParts []string
	// Shifted evaluates the scalar at the SCS as the mean of the two
	// adjacent nodes instead of interpolating
	Shifted bool
}

// NodalGradDriver computes the Green-Gauss gradient of a nodal field over
// the dual control volumes. The dual nodal volume must be current.
type NodalGradDriver struct {
	lifecycle
	spec   NodalGradSpec
	opts   Options
	comm   parallel.Communicator
	reg    *field.Registry
	nDim   int
	nComp  int
	q      field.Ordinal
	grad   field.Ordinal
	dual   field.Ordinal
	me     element.MasterElement
	fe     element.FaceMasterElement
	elems  *sweep
	faces  *sweep
	groups [2][][]int // elements, faces
	nodes  []int
}

func NewNodalGradDriver(bulk *mesh.Bulk, comm parallel.Communicator, opts Options,
	spec NodalGradSpec) (*NodalGradDriver, error) {
	name := "nodal gradient " + spec.Scalar
	reg := bulk.Fields()
	if reg == nil {
		return nil, fmt.Errorf("%s: mesh not committed", name)
	}
	d := &NodalGradDriver{spec: spec, opts: opts.withDefaults(), comm: comm, reg: reg, nDim: bulk.NDim}
	var err error
	if d.q, err = reg.ResolveRank(spec.Scalar, field.NodeRank, field.StateNP1); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	d.nComp = reg.Components(d.q)
	if d.dual, err = reg.ResolveRank(kernel.DualVolumeName, field.NodeRank, field.StateNP1); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	f, err := reg.Declare(spec.Gradient, field.NodeRank, d.nComp*d.nDim, 1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	d.grad = f.Ordinal(field.StateNP1)
	coords, err := coordinates(reg, d.opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	sel, err := selectEntities(bulk, field.ElemRank, spec.ElemParts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if d.me, err = element.GetVolumeMasterElement(sel.topo); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	d.elems = newSweep(sel, reg, d.nDim)
	d.elems.req.AddCoordinatesField(coords, d.nDim)
	d.elems.req.AddCVFEMVolumeME(d.me)
	d.elems.req.AddGatheredNodalField(d.q, d.nComp)
	d.elems.req.AddGatheredNodalField(d.dual, 1)
	d.elems.req.AddMasterElementCall(kernel.SCSAreaVector)
	d.nodes = sel.selectedNodes(bulk.NumNodes)

	if len(spec.FaceParts) > 0 {
		fsel, err := selectEntities(bulk, field.FaceRank, spec.FaceParts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if d.fe, err = element.GetFaceMasterElement(fsel.topo); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		d.faces = newSweep(fsel, reg, d.nDim)
		d.faces.req.AddCoordinatesField(coords, d.nDim)
		d.faces.req.AddCVFEMFaceME(d.fe)
		d.faces.req.AddGatheredNodalField(d.q, d.nComp)
		d.faces.req.AddGatheredNodalField(d.dual, 1)
		d.faces.req.AddMasterElementCall(kernel.FaceExposedArea)
	}
	return d, nil
}

func (d *NodalGradDriver) Name() string { return "nodal gradient " + d.spec.Scalar }

func (d *NodalGradDriver) Setup(ti timeint.TimeIntegrator) error {
	for i, s := range []*sweep{d.elems, d.faces} {
		if s == nil {
			continue
		}
		if err := s.prepare(d.opts.NumWorkers); err != nil {
			return fmt.Errorf("%s: %w", d.Name(), err)
		}
		if d.groups[i] == nil {
			groups, err := s.sel.color(d.opts.Coloring)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Name(), err)
			}
			d.groups[i] = groups
		}
	}
	d.opts.Log.WithFields(logrus.Fields{
		"algorithm": d.Name(),
		"gradient":  d.spec.Gradient,
		"nodes":     len(d.nodes),
		"shifted":   d.spec.Shifted,
	}).Debug("setup")
	return d.setup(ti)
}

// Execute zeroes the gradient on the selected nodes, adds the interior and
// boundary surface integrals and sums over shared nodes
func (d *NodalGradDriver) Execute() error {
	if err := d.begin(d.Name()); err != nil {
		return err
	}
	grad := d.reg.Data(d.grad)
	stride := d.nComp * d.nDim
	for _, n := range d.nodes {
		for i := n * stride; i < (n+1)*stride; i++ {
			grad[i] = 0
		}
	}

	nq, nDim := d.nComp, d.nDim
	npe := d.me.NodesPerElement()
	adjacent := d.me.Adjacent()
	scsShape := d.me.ScsShapeFcn().RawMatrix()
	qIp := make([][]float64, d.opts.NumWorkers)
	for w := range qIp {
		qIp[w] = make([]float64, nq)
	}
	d.elems.run(d.groups[0], func(w int, sv *kernel.ScratchViews) {
		q, vol := sv.View(d.q), sv.View(d.dual)
		qi := qIp[w]
		for ip, lr := range adjacent {
			il, ir := lr[0], lr[1]
			for c := range qi {
				if d.spec.Shifted {
					qi[c] = 0.5 * (q[il*nq+c] + q[ir*nq+c])
					continue
				}
				qi[c] = 0
				for ic, r := range scsShape.Data[ip*scsShape.Stride : ip*scsShape.Stride+npe] {
					qi[c] += r * q[ic*nq+c]
				}
			}
			gl := grad[sv.Nodes[il]*stride:]
			gr := grad[sv.Nodes[ir]*stride:]
			for c, qc := range qi {
				for j := 0; j < nDim; j++ {
					fac := qc * sv.ScsAreav[ip*nDim+j]
					gl[c*nDim+j] += fac / vol[il]
					gr[c*nDim+j] -= fac / vol[ir]
				}
			}
		}
	})

	if d.faces != nil {
		nfn := d.fe.NodesPerFace()
		ipNodeMap := d.fe.IpNodeMap()
		faceShape := d.fe.ShapeFcn().RawMatrix()
		d.faces.run(d.groups[1], func(w int, sv *kernel.ScratchViews) {
			q, vol := sv.View(d.q), sv.View(d.dual)
			qi := qIp[w]
			for ip, nn := range ipNodeMap {
				for c := range qi {
					if d.spec.Shifted {
						qi[c] = q[nn*nq+c]
						continue
					}
					qi[c] = 0
					for ic, r := range faceShape.Data[ip*faceShape.Stride : ip*faceShape.Stride+nfn] {
						qi[c] += r * q[ic*nq+c]
					}
				}
				g := grad[sv.Nodes[nn]*stride:]
				for c, qc := range qi {
					for j := 0; j < nDim; j++ {
						g[c*nDim+j] += qc * sv.ExposedAreav[ip*nDim+j] / vol[nn]
					}
				}
			}
		})
	}

	if err := d.comm.ParallelSum(d.reg, d.spec.Gradient); err != nil {
		return fmt.Errorf("%s: %w", d.Name(), err)
	}
	d.done()
	return nil
}
