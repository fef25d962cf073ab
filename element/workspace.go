package element

// Workspace holds the buffers of the geometric evaluations of one
// goroutine. Master elements are shared and read only; every worker passes
// its own Workspace so that per-entity evaluations do not allocate.
type Workspace struct {
	nDim      int
	jac, jinv []float64
	lr, a     []float64
	d1, d2, n []float64
	c, out    []float64
	p         [][]float64
}

// NewWorkspace sizes a Workspace for elements of dimension nDim
func NewWorkspace(nDim int) *Workspace {
	ws := &Workspace{
		nDim: nDim,
		jac:  make([]float64, nDim*nDim),
		jinv: make([]float64, nDim*nDim),
	}
	vec := make([]float64, 6*3)
	ws.lr, ws.a, ws.d1 = vec[0:nDim], vec[3:3+nDim], vec[6:9]
	ws.d2, ws.n, ws.c = vec[9:12], vec[12:15], vec[15:18]
	ws.out = make([]float64, nDim)
	ws.p = make([][]float64, 4)
	for k := range ws.p {
		ws.p[k] = make([]float64, nDim)
	}
	return ws
}

// fit returns ws, or a fresh Workspace when ws is nil or sized for another
// dimension
func (ws *Workspace) fit(nDim int) *Workspace {
	if ws == nil || ws.nDim != nDim {
		return NewWorkspace(nDim)
	}
	return ws
}
