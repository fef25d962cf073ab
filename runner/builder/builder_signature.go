package builder

import (
	"fmt"
	"strings"
)

// Param is one kernel argument. Arrays expand to a global pointer and a
// per-partition offset table; scalars are passed by value.
type Param struct {
	Name   string
	Output bool
	Scalar bool
}

func Input(name string) Param  { return Param{Name: name} }
func Output(name string) Param { return Param{Name: name, Output: true} }
func Scalar(name string) Param { return Param{Name: name, Scalar: true} }

// GenerateKernelSignature returns the parameter list of a kernel. K is
// always first, then the params in the order given.
func (kb *Builder) GenerateKernelSignature(params ...Param) string {
	args := []string{"const int_t* K"}
	for _, p := range params {
		switch {
		case p.Scalar:
			args = append(args, fmt.Sprintf("const real_t %s", p.Name))
		case p.Output:
			args = append(args,
				fmt.Sprintf("real_t* %s_global", p.Name),
				fmt.Sprintf("const int_t* %s_offsets", p.Name))
		default:
			args = append(args,
				fmt.Sprintf("const real_t* %s_global", p.Name),
				fmt.Sprintf("const int_t* %s_offsets", p.Name))
		}
	}
	return strings.Join(args, ",\n\t")
}

// GenerateKernelTemplate wraps body in the partition loop of a kernel.
// Inside body each array is available as a pointer to its partition and
// the entity loop variable is elem.
func (kb *Builder) GenerateKernelTemplate(kernelName, body string, params ...Param) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "@kernel void %s(\n\t%s\n) {\n", kernelName, kb.GenerateKernelSignature(params...))
	sb.WriteString("\tfor (int part = 0; part < NPART; ++part; @outer) {\n")
	for _, p := range params {
		if p.Scalar {
			continue
		}
		constQualifier := "const "
		if p.Output {
			constQualifier = ""
		}
		fmt.Fprintf(&sb, "\t\t%sreal_t* %s = %s_PART(part);\n", constQualifier, p.Name, p.Name)
	}
	sb.WriteString("\t\tfor (int elem = 0; elem < KpartMax; ++elem; @inner) {\n")
	sb.WriteString("\t\t\tif (elem < K[part]) {\n")
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		if line == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString("\t\t\t\t" + line + "\n")
	}
	sb.WriteString("\t\t\t}\n\t\t}\n\t}\n}\n")
	return sb.String()
}
