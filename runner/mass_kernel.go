package runner

import (
	"fmt"

	"github.com/notargets/CVFEMKernel/element"
	"github.com/notargets/CVFEMKernel/runner/builder"
)

// Scalar mass device kernel. Per element the input holds, each npe long:
// q and rho at N-1, N, N+1, then the SCV volumes. The output holds the
// row-major local lhs followed by the local rhs.
const (
	MassKernelName   = "scalar_mass"
	MassInputArray   = "massIn"
	MassOutputArray  = "massOut"
	massInputFields  = 7
	massIpNodeMapTbl = "IpNodeMap"
)

// MassInputStride is the per element input length for npe nodes
func MassInputStride(npe int) int { return massInputFields * npe }

// MassOutputStride is the per element output length for npe nodes
func MassOutputStride(npe int) int { return npe*npe + npe }

// AddMassTables embeds the reference tables and ip to node map of me;
// lumped selects the shifted table for the mass kernel
func (kr *Runner) AddMassTables(me element.MasterElement, lumped bool) {
	for name, m := range element.GetRefMatrices(me) {
		kr.AddStaticMatrix(name, m)
	}
	kr.AddStaticIndices(massIpNodeMapTbl, me.IpNodeMap())
	kr.massShape = element.ScvShapeName(me, lumped)
}

// MassKernelSource returns the kernel computing the BDF mass term of one
// element per inner iteration. Scalars: dt, gamma1..3, relax.
func (kr *Runner) MassKernelSource(npe int) string {
	body := fmt.Sprintf(`const real_t* e = %[1]s + elem*%[3]d;
real_t* lhs = %[2]s + elem*%[4]d;
real_t* rhs = lhs + %[5]d*%[5]d;
for (int i = 0; i < %[4]d; ++i) lhs[i] = REAL_ZERO;

for (int ip = 0; ip < %[5]d; ++ip) {
	const int nn = %[7]s[ip];
	real_t qNm1 = REAL_ZERO, qN = REAL_ZERO, qNp1 = REAL_ZERO;
	real_t rNm1 = REAL_ZERO, rN = REAL_ZERO, rNp1 = REAL_ZERO;
	for (int ic = 0; ic < %[5]d; ++ic) {
		const real_t r = %[6]s[ip][ic];
		qNm1 += r*e[ic];
		qN   += r*e[%[5]d + ic];
		qNp1 += r*e[2*%[5]d + ic];
		rNm1 += r*e[3*%[5]d + ic];
		rN   += r*e[4*%[5]d + ic];
		rNp1 += r*e[5*%[5]d + ic];
	}
	const real_t scV = e[6*%[5]d + ip];
	rhs[nn] += -(gamma1*rNp1*qNp1 + gamma2*rN*qN + gamma3*rNm1*qNm1)*scV/dt;
	for (int ic = 0; ic < %[5]d; ++ic) {
		lhs[nn*%[5]d + ic] += %[6]s[ip][ic]*gamma1*rNp1*scV/dt*relax;
	}
}`, MassInputArray, MassOutputArray, MassInputStride(npe), MassOutputStride(npe), npe,
		kr.massShape, massIpNodeMapTbl)

	return kr.GenerateKernelTemplate(MassKernelName, body,
		builder.Input(MassInputArray),
		builder.Output(MassOutputArray),
		builder.Scalar("dt"),
		builder.Scalar("gamma1"),
		builder.Scalar("gamma2"),
		builder.Scalar("gamma3"),
		builder.Scalar("relax"),
	)
}
