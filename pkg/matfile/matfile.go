// Package matfile reads and writes MATLAB Level 5 MAT-files.
//
// Only the subset of the format needed to exchange recorded signals is
// supported: numeric (real and complex), logical, char, struct, object and
// cell arrays, optionally zlib-compressed. Sparse arrays and HDF5-based
// v7.3 files are rejected.
package matfile

import (
	"errors"
	"fmt"
	"strings"
)

// Class is the MATLAB array class stored in the array flags
type Class uint8

const (
	ClassCell   Class = 1
	ClassStruct Class = 2
	ClassObject Class = 3
	ClassChar   Class = 4
	ClassSparse Class = 5
	ClassDouble Class = 6
	ClassSingle Class = 7
	ClassInt8   Class = 8
	ClassUint8  Class = 9
	ClassInt16  Class = 10
	ClassUint16 Class = 11
	ClassInt32  Class = 12
	ClassUint32 Class = 13
	ClassInt64  Class = 14
	ClassUint64 Class = 15
)

// Data element types
const (
	miINT8       uint32 = 1
	miUINT8      uint32 = 2
	miINT16      uint32 = 3
	miUINT16     uint32 = 4
	miINT32      uint32 = 5
	miUINT32     uint32 = 6
	miSINGLE     uint32 = 7
	miDOUBLE     uint32 = 9
	miINT64      uint32 = 12
	miUINT64     uint32 = 13
	miMATRIX     uint32 = 14
	miCOMPRESSED uint32 = 15
	miUTF8       uint32 = 16
	miUTF16      uint32 = 17
	miUTF32      uint32 = 18
)

const (
	headerLen     = 128
	headerTextLen = 116

	flagComplex uint32 = 0x0800
	flagGlobal  uint32 = 0x0400
	flagLogical uint32 = 0x0200
)

var (
	// ErrNotMATFile is returned when the header is not a Level 5 MAT-file header
	ErrNotMATFile = errors.New("not a MAT-file")

	// ErrUnsupportedVersion is returned for v7.3 (HDF5) and unknown versions
	ErrUnsupportedVersion = errors.New("unsupported MAT-file version")

	// ErrTruncated is returned when a data element runs past the end of the input
	ErrTruncated = errors.New("truncated MAT-file data element")

	// ErrInvalidDims is returned when an array's dimensions are negative,
	// overflow, or promise more elements than the file holds
	ErrInvalidDims = errors.New("invalid array dimensions")

	// ErrTooLarge is returned when compressed variables inflate past
	// MaxInflatedSize
	ErrTooLarge = errors.New("decompressed data exceeds size limit")
)

// MaxInflatedSize bounds the total decompressed size of all compressed
// variables in one file. A full rig recording is under 4 MB.
const MaxInflatedSize = 256 << 20

// maxEmptyRecords bounds struct arrays without fields, whose elements take
// no space in the file
const maxEmptyRecords = 1 << 16

func (c Class) String() string {
	switch c {
	case ClassCell:
		return "cell"
	case ClassStruct:
		return "struct"
	case ClassObject:
		return "object"
	case ClassChar:
		return "char"
	case ClassSparse:
		return "sparse"
	case ClassDouble:
		return "double"
	case ClassSingle:
		return "single"
	case ClassInt8:
		return "int8"
	case ClassUint8:
		return "uint8"
	case ClassInt16:
		return "int16"
	case ClassUint16:
		return "uint16"
	case ClassInt32:
		return "int32"
	case ClassUint32:
		return "uint32"
	case ClassInt64:
		return "int64"
	case ClassUint64:
		return "uint64"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// IsNumeric reports whether the class holds numbers
func (c Class) IsNumeric() bool {
	return c >= ClassDouble && c <= ClassUint64
}

// Record is one element of a struct array, keyed by field name
type Record map[string]*Array

// Array is a decoded MATLAB variable. Which members are populated depends on
// the class: Real/Imag for numeric arrays, Text for char arrays, Fields and
// Records for struct and object arrays, Cells for cell arrays. Element order
// is always column-major, as in the file.
type Array struct {
	Name    string
	Class   Class
	Dims    []int
	Logical bool

	Real []float64
	Imag []float64

	Text string

	ClassName string
	Fields    []string
	Records   []Record

	Cells []*Array
}

// Len returns the number of elements implied by the dimensions
func (a *Array) Len() int {
	if len(a.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range a.Dims {
		n *= d
	}
	return n
}

// IsEmpty reports whether the array has no elements
func (a *Array) IsEmpty() bool {
	return a.Len() == 0
}

// IsVector reports whether at most one dimension is larger than one
func (a *Array) IsVector() bool {
	nonSingleton := 0
	for _, d := range a.Dims {
		if d > 1 {
			nonSingleton++
		}
	}
	return nonSingleton <= 1
}

// Squeeze returns the real part of a numeric vector as a 1-D slice. It fails
// for non-numeric arrays and for matrices with more than one non-singleton
// dimension.
func (a *Array) Squeeze() ([]float64, error) {
	if !a.Class.IsNumeric() {
		return nil, fmt.Errorf("%q is a %s array, not numeric", a.Name, a.Class)
	}
	if !a.IsVector() {
		return nil, fmt.Errorf("%q has shape %v and cannot be squeezed to 1-D", a.Name, a.Dims)
	}
	return a.Real, nil
}

// Field returns a field of a scalar struct, or of the first element of a
// struct array
func (a *Array) Field(name string) (*Array, bool) {
	if len(a.Records) == 0 {
		return nil, false
	}
	v, ok := a.Records[0][name]
	return v, ok
}

// Elements returns the struct records of a struct array, or the struct
// records found inside a cell array of structs
func (a *Array) Elements() []Record {
	switch a.Class {
	case ClassStruct, ClassObject:
		return a.Records
	case ClassCell:
		var recs []Record
		for _, c := range a.Cells {
			if c != nil && (c.Class == ClassStruct || c.Class == ClassObject) {
				recs = append(recs, c.Records...)
			}
		}
		return recs
	}
	return nil
}

// String returns the text of a char array
func (a *Array) String() string {
	return a.Text
}

// File is a decoded MAT-file
type File struct {
	Header    string
	Variables []*Array
}

// Lookup returns the first top-level variable with the given name
func (f *File) Lookup(name string) (*Array, bool) {
	for _, v := range f.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// Names lists the top-level variable names in file order
func (f *File) Names() []string {
	names := make([]string, len(f.Variables))
	for i, v := range f.Variables {
		names[i] = v.Name
	}
	return names
}

// NewDouble creates a double array. data must hold Len(dims) values in
// column-major order.
func NewDouble(name string, dims []int, data []float64) *Array {
	return &Array{Name: name, Class: ClassDouble, Dims: dims, Real: data}
}

// NewRowVector creates a 1xN double array
func NewRowVector(name string, data []float64) *Array {
	return NewDouble(name, []int{1, len(data)}, data)
}

// NewScalar creates a 1x1 double array
func NewScalar(name string, v float64) *Array {
	return NewDouble(name, []int{1, 1}, []float64{v})
}

// NewEmpty creates a 0x0 double array
func NewEmpty(name string) *Array {
	return NewDouble(name, []int{0, 0}, nil)
}

// NewString creates a 1xN char array; the empty string becomes 0x0
func NewString(name, text string) *Array {
	n := len([]rune(text))
	dims := []int{1, n}
	if n == 0 {
		dims = []int{0, 0}
	}
	return &Array{Name: name, Class: ClassChar, Dims: dims, Text: text}
}

// NewStruct creates a struct array. Records are laid out column-major
// according to dims.
func NewStruct(name string, dims []int, fields []string, records []Record) *Array {
	return &Array{Name: name, Class: ClassStruct, Dims: dims, Fields: fields, Records: records}
}

// charRows splits column-major characters into rows
func charRows(chars []rune, dims []int) string {
	if len(dims) == 0 || len(chars) == 0 {
		return ""
	}
	rows := dims[0]
	if rows <= 1 {
		return string(chars)
	}
	cols := len(chars) / rows
	lines := make([]string, rows)
	for r := 0; r < rows; r++ {
		line := make([]rune, 0, cols)
		for c := 0; c < cols; c++ {
			line = append(line, chars[r+c*rows])
		}
		lines[r] = string(line)
	}
	return strings.Join(lines, "\n")
}
