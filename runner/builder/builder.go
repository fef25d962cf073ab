package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notargets/CVFEMKernel/element"
	"gonum.org/v1/gonum/mat"
)

// DataType represents the precision of numerical data
type DataType int

const (
	Float32 DataType = iota + 1
	Float64
	INT32
	INT64
)

// Builder generates the preamble shared by the partition-parallel kernels
// of one runner: types, partition constants, static tables and the
// per-array partition access macros
type Builder struct {
	// Partition configuration
	NumPartitions int
	K             []int
	KpartMax      int // Maximum K value across all partitions

	FloatType DataType
	IntType   DataType

	// Static data to embed
	StaticMatrices map[string]mat.Matrix
	StaticIndices  map[string][]int

	// Array tracking for macro generation
	AllocatedArrays []string

	KernelPreamble string
}

// Config holds configuration for creating a Builder
type Config struct {
	K         []int
	FloatType DataType
	IntType   DataType
}

// NewBuilder creates a new Builder instance
func NewBuilder(cfg Config) *Builder {
	if len(cfg.K) == 0 {
		panic("K array cannot be empty")
	}
	kpartMax := 0
	for _, k := range cfg.K {
		if k > kpartMax {
			kpartMax = k
		}
	}
	floatType := cfg.FloatType
	if floatType == 0 {
		floatType = Float64
	}
	intType := cfg.IntType
	if intType == 0 {
		intType = INT64
	}
	kb := &Builder{
		NumPartitions:  len(cfg.K),
		K:              make([]int, len(cfg.K)),
		KpartMax:       kpartMax,
		FloatType:      floatType,
		IntType:        intType,
		StaticMatrices: make(map[string]mat.Matrix),
		StaticIndices:  make(map[string][]int),
	}
	copy(kb.K, cfg.K)
	return kb
}

// AddStaticMatrix adds a matrix to be embedded as static const in kernels
func (kb *Builder) AddStaticMatrix(name string, m mat.Matrix) {
	kb.StaticMatrices[name] = m
}

// AddStaticIndices embeds an integer table, e.g. an ip to node map
func (kb *Builder) AddStaticIndices(name string, idx []int) {
	kb.StaticIndices[name] = append([]int(nil), idx...)
}

// AddArray records a partitioned array so its access macro is generated
func (kb *Builder) AddArray(name string) {
	for _, a := range kb.AllocatedArrays {
		if a == name {
			return
		}
	}
	kb.AllocatedArrays = append(kb.AllocatedArrays, name)
}

// GetTotalElements returns sum of all K values
func (kb *Builder) GetTotalElements() int {
	total := 0
	for _, k := range kb.K {
		total += k
	}
	return total
}

// GetIntSize returns the size of int_t in bytes
func (kb *Builder) GetIntSize() int {
	if kb.IntType == INT32 {
		return 4
	}
	return 8
}

// GeneratePreamble generates the kernel preamble with static data and utilities
func (kb *Builder) GeneratePreamble() string {
	var sb strings.Builder
	sb.WriteString(kb.generateTypeDefinitions())
	sb.WriteString(kb.generateStaticData())
	sb.WriteString(kb.generatePartitionMacros())
	kb.KernelPreamble = sb.String()
	return kb.KernelPreamble
}

func (kb *Builder) generateTypeDefinitions() string {
	var sb strings.Builder

	floatTypeStr := "double"
	floatSuffix := ""
	if kb.FloatType == Float32 {
		floatTypeStr = "float"
		floatSuffix = "f"
	}
	intTypeStr := "long"
	if kb.IntType == INT32 {
		intTypeStr = "int"
	}

	fmt.Fprintf(&sb, "typedef %s real_t;\n", floatTypeStr)
	fmt.Fprintf(&sb, "typedef %s int_t;\n", intTypeStr)
	fmt.Fprintf(&sb, "#define REAL_ZERO 0.0%s\n", floatSuffix)
	fmt.Fprintf(&sb, "#define REAL_ONE 1.0%s\n\n", floatSuffix)

	fmt.Fprintf(&sb, "#define NPART %d\n", kb.NumPartitions)
	fmt.Fprintf(&sb, "#define KpartMax %d\n\n", kb.KpartMax)
	return sb.String()
}

// generateStaticData writes the tables in name order so the source, and
// with it the device's kernel cache key, is stable
func (kb *Builder) generateStaticData() string {
	var sb strings.Builder
	ft := element.FLOAT64
	if kb.FloatType == Float32 {
		ft = element.FLOAT32
	}
	if len(kb.StaticMatrices) > 0 {
		sb.WriteString("// Static matrices\n")
		for _, name := range sortedKeys(kb.StaticMatrices) {
			sb.WriteString(element.FormatStaticMatrix(name, kb.StaticMatrices[name], ft))
		}
	}
	for _, name := range sortedKeys(kb.StaticIndices) {
		idx := kb.StaticIndices[name]
		vals := make([]string, len(idx))
		for i, v := range idx {
			vals[i] = fmt.Sprint(v)
		}
		fmt.Fprintf(&sb, "const int %s[%d] = {%s};\n\n", name, len(idx), strings.Join(vals, ", "))
	}
	return sb.String()
}

func (kb *Builder) generatePartitionMacros() string {
	var sb strings.Builder
	sb.WriteString("// Partition access macros\n")
	for _, arrayName := range kb.AllocatedArrays {
		fmt.Fprintf(&sb, "#define %s_PART(part) (%s_global + %s_offsets[part])\n",
			arrayName, arrayName, arrayName)
	}
	if len(kb.AllocatedArrays) > 0 {
		sb.WriteString("\n")
	}
	return sb.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
