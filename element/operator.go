package element

import (
	"bytes"
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// FloatType is the precision of tables written into device source
type FloatType uint8

const (
	FLOAT64 FloatType = iota
	FLOAT32
)

// CType is the C spelling of the type
func (ft FloatType) CType() string {
	if ft == FLOAT32 {
		return "float"
	}
	return "double"
}

// Literal writes v as a C literal that reads back to the same value at the
// precision of ft
func (ft FloatType) Literal(dst []byte, v float64) []byte {
	bits, suffix := 64, ""
	if ft == FLOAT32 {
		bits, suffix = 32, "f"
	}
	start := len(dst)
	dst = strconv.AppendFloat(dst, v, 'g', -1, bits)
	if !bytes.ContainsAny(dst[start:], ".eE") {
		dst = append(dst, ".0"...)
	}
	return append(dst, suffix...)
}

// ScvShapeName is the name of the SCV interpolation table of me in
// generated device source
func ScvShapeName(me MasterElement, shifted bool) string {
	if shifted {
		return "ScvShiftedShape_" + me.Topology().String()
	}
	return "ScvShape_" + me.Topology().String()
}

// GetRefMatrices returns the constant tables of a master element keyed by the
// names used in generated device source
func GetRefMatrices(me MasterElement) (refMats map[string]mat.Matrix) {
	refMats = map[string]mat.Matrix{
		ScvShapeName(me, false):              me.ShapeFcn(false),
		ScvShapeName(me, true):               me.ShapeFcn(true),
		"ScsShape_" + me.Topology().String(): me.ScsShapeFcn(),
	}
	return
}

// FormatStaticMatrix writes m as a constant C array indexed [row][col], one
// integration point per row
func FormatStaticMatrix(name string, m mat.Matrix, ft FloatType) string {
	rows, cols := m.Dims()
	buf := fmt.Appendf(nil, "const %s %s[%d][%d] = {\n", ft.CType(), name, rows, cols)
	for i := 0; i < rows; i++ {
		buf = append(buf, "  {"...)
		for j := 0; j < cols; j++ {
			if j > 0 {
				buf = append(buf, ", "...)
			}
			buf = ft.Literal(buf, m.At(i, j))
		}
		buf = append(buf, '}')
		if i < rows-1 {
			buf = append(buf, ',')
		}
		buf = fmt.Appendf(buf, " // ip %d\n", i)
	}
	return string(append(buf, "};\n\n"...))
}
