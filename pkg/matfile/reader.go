package matfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf16"
)

type decoder struct {
	order binary.ByteOrder
	// inflateBudget is what compressed elements may still expand to
	inflateBudget int64
}

// Open reads and decodes a MAT-file from disk
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Decode reads a whole MAT-file from r
func Decode(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes an in-memory MAT-file
func Parse(data []byte) (*File, error) {
	return parse(data, MaxInflatedSize)
}

func parse(data []byte, inflateLimit int64) (*File, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrNotMATFile, len(data))
	}

	var order binary.ByteOrder
	switch string(data[126:128]) {
	case "IM":
		order = binary.LittleEndian
	case "MI":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad endian indicator %q", ErrNotMATFile, data[126:128])
	}

	if version := order.Uint16(data[124:126]); version != 0x0100 {
		return nil, fmt.Errorf("%w: version 0x%04x", ErrUnsupportedVersion, version)
	}

	f := &File{
		Header: strings.TrimRight(string(data[:headerTextLen]), " \x00"),
	}
	d := &decoder{order: order, inflateBudget: inflateLimit}

	buf := data[headerLen:]
	for len(buf) > 0 {
		typ, payload, rest, err := d.element(buf)
		if err != nil {
			return nil, err
		}
		buf = rest

		switch typ {
		case miCOMPRESSED:
			arr, err := d.compressed(payload)
			if err != nil {
				return nil, err
			}
			if arr != nil {
				f.Variables = append(f.Variables, arr)
			}
		case miMATRIX:
			arr, err := d.matrix(payload)
			if err != nil {
				return nil, err
			}
			f.Variables = append(f.Variables, arr)
		default:
			// Top-level elements other than matrices carry nothing we use
		}
	}

	return f, nil
}

// element splits the next data element off buf, handling the small element
// format and the 8-byte alignment of regular elements
func (d *decoder) element(buf []byte) (typ uint32, payload, rest []byte, err error) {
	if len(buf) < 8 {
		return 0, nil, nil, ErrTruncated
	}

	first := d.order.Uint32(buf[0:4])
	if first>>16 != 0 {
		n := int(first >> 16)
		if n > 4 {
			return 0, nil, nil, fmt.Errorf("small data element claims %d bytes", n)
		}
		return first & 0xffff, buf[4 : 4+n], buf[8:], nil
	}

	n := uint64(d.order.Uint32(buf[4:8]))
	if n > uint64(len(buf)-8) {
		return 0, nil, nil, fmt.Errorf("%w: element type %d wants %d bytes, %d left", ErrTruncated, first, n, len(buf)-8)
	}

	end := 8 + int(n)
	next := end
	if first != miCOMPRESSED {
		next = 8 + int(pad8(n))
	}
	if next > len(buf) {
		next = len(buf)
	}
	return first, buf[8:end], buf[next:], nil
}

func (d *decoder) compressed(payload []byte) (*Array, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("compressed element: %w", err)
	}
	defer zr.Close()

	inner, err := io.ReadAll(io.LimitReader(zr, d.inflateBudget+1))
	if err != nil {
		return nil, fmt.Errorf("compressed element: %w", err)
	}
	if int64(len(inner)) > d.inflateBudget {
		return nil, fmt.Errorf("%w: compressed elements inflate past %d bytes", ErrTooLarge, d.inflateBudget)
	}
	d.inflateBudget -= int64(len(inner))

	typ, body, _, err := d.element(inner)
	if err != nil {
		return nil, err
	}
	if typ != miMATRIX {
		return nil, nil
	}
	return d.matrix(body)
}

func (d *decoder) matrix(buf []byte) (*Array, error) {
	// MATLAB writes empty cells and fields as zero-length matrix elements
	if len(buf) == 0 {
		return &Array{Class: ClassDouble, Dims: []int{0, 0}}, nil
	}

	typ, flagBytes, buf, err := d.element(buf)
	if err != nil {
		return nil, err
	}
	if typ != miUINT32 || len(flagBytes) < 8 {
		return nil, fmt.Errorf("array flags: unexpected element type %d", typ)
	}
	flags := d.order.Uint32(flagBytes[0:4])

	arr := &Array{
		Class:   Class(flags & 0xff),
		Logical: flags&flagLogical != 0,
	}
	isComplex := flags&flagComplex != 0

	typ, dimBytes, buf, err := d.element(buf)
	if err != nil {
		return nil, err
	}
	dims, err := d.numbers(typ, dimBytes)
	if err != nil {
		return nil, fmt.Errorf("dimensions: %w", err)
	}
	arr.Dims = make([]int, len(dims))
	for i, v := range dims {
		arr.Dims[i] = int(v)
	}

	_, nameBytes, buf, err := d.element(buf)
	if err != nil {
		return nil, err
	}
	arr.Name = string(nameBytes)

	n, err := elementCount(arr.Dims)
	if err != nil {
		return nil, fmt.Errorf("%w: %q has dimensions %v", err, arr.Name, arr.Dims)
	}

	switch {
	case arr.Class.IsNumeric():
		typ, realBytes, rest, err := d.element(buf)
		if err != nil {
			return nil, fmt.Errorf("%q real part: %w", arr.Name, err)
		}
		if arr.Real, err = d.numbers(typ, realBytes); err != nil {
			return nil, fmt.Errorf("%q real part: %w", arr.Name, err)
		}
		if len(arr.Real) != n {
			return nil, fmt.Errorf("%w: %q has dimensions %v but %d values", ErrInvalidDims, arr.Name, arr.Dims, len(arr.Real))
		}
		if isComplex {
			typ, imagBytes, _, err := d.element(rest)
			if err != nil {
				return nil, fmt.Errorf("%q imaginary part: %w", arr.Name, err)
			}
			if arr.Imag, err = d.numbers(typ, imagBytes); err != nil {
				return nil, fmt.Errorf("%q imaginary part: %w", arr.Name, err)
			}
			if len(arr.Imag) != n {
				return nil, fmt.Errorf("%w: %q has dimensions %v but %d imaginary values", ErrInvalidDims, arr.Name, arr.Dims, len(arr.Imag))
			}
		}

	case arr.Class == ClassChar:
		if len(buf) == 0 {
			if n > 0 {
				return nil, fmt.Errorf("%w: %q has dimensions %v but no text", ErrInvalidDims, arr.Name, arr.Dims)
			}
			break
		}
		typ, textBytes, _, err := d.element(buf)
		if err != nil {
			return nil, fmt.Errorf("%q text: %w", arr.Name, err)
		}
		chars, err := d.chars(typ, textBytes)
		if err != nil {
			return nil, fmt.Errorf("%q text: %w", arr.Name, err)
		}
		// every character takes at least one byte
		if n > len(textBytes) {
			return nil, fmt.Errorf("%w: %q has dimensions %v but %d bytes of text", ErrInvalidDims, arr.Name, arr.Dims, len(textBytes))
		}
		arr.Text = charRows(chars, arr.Dims)

	case arr.Class == ClassStruct || arr.Class == ClassObject:
		if err := d.structure(arr, n, buf); err != nil {
			return nil, err
		}

	case arr.Class == ClassCell:
		// every cell is a tagged element of at least 8 bytes
		if n > len(buf)/8 {
			return nil, fmt.Errorf("%w: %q has dimensions %v but only %d bytes of cells", ErrInvalidDims, arr.Name, arr.Dims, len(buf))
		}
		arr.Cells = make([]*Array, 0, n)
		for i := 0; i < n; i++ {
			typ, body, rest, err := d.element(buf)
			if err != nil {
				return nil, fmt.Errorf("%q cell %d: %w", arr.Name, i, err)
			}
			if typ != miMATRIX {
				return nil, fmt.Errorf("%q cell %d: unexpected element type %d", arr.Name, i, typ)
			}
			cell, err := d.matrix(body)
			if err != nil {
				return nil, err
			}
			arr.Cells = append(arr.Cells, cell)
			buf = rest
		}

	default:
		return nil, fmt.Errorf("%q: %s arrays are not supported", arr.Name, arr.Class)
	}

	return arr, nil
}

func (d *decoder) structure(arr *Array, n int, buf []byte) error {
	var err error
	var typ uint32
	var payload []byte

	if arr.Class == ClassObject {
		typ, payload, buf, err = d.element(buf)
		if err != nil {
			return fmt.Errorf("%q class name: %w", arr.Name, err)
		}
		arr.ClassName = string(payload)
	}

	typ, payload, buf, err = d.element(buf)
	if err != nil {
		return fmt.Errorf("%q field name length: %w", arr.Name, err)
	}
	lengths, err := d.numbers(typ, payload)
	if err != nil || len(lengths) != 1 || lengths[0] <= 0 {
		return fmt.Errorf("%q: invalid field name length", arr.Name)
	}
	nameLen := int(lengths[0])

	_, payload, buf, err = d.element(buf)
	if err != nil {
		return fmt.Errorf("%q field names: %w", arr.Name, err)
	}
	for i := 0; i+nameLen <= len(payload); i += nameLen {
		raw := payload[i : i+nameLen]
		if idx := bytes.IndexByte(raw, 0); idx >= 0 {
			raw = raw[:idx]
		}
		arr.Fields = append(arr.Fields, string(raw))
	}

	// every field value is a tagged element of at least 8 bytes
	if fields := len(arr.Fields); (fields > 0 && n > len(buf)/(8*fields)) || (fields == 0 && n > maxEmptyRecords) {
		return fmt.Errorf("%w: %q has dimensions %v but only %d bytes of fields", ErrInvalidDims, arr.Name, arr.Dims, len(buf))
	}
	arr.Records = make([]Record, 0, n)
	for i := 0; i < n; i++ {
		rec := make(Record, len(arr.Fields))
		for _, field := range arr.Fields {
			typ, body, rest, err := d.element(buf)
			if err != nil {
				return fmt.Errorf("%q(%d).%s: %w", arr.Name, i, field, err)
			}
			if typ != miMATRIX {
				return fmt.Errorf("%q(%d).%s: unexpected element type %d", arr.Name, i, field, typ)
			}
			value, err := d.matrix(body)
			if err != nil {
				return err
			}
			value.Name = field
			rec[field] = value
			buf = rest
		}
		arr.Records = append(arr.Records, rec)
	}

	return nil
}

// elementCount multiplies dims, rejecting negative sizes and overflow
func elementCount(dims []int) (int, error) {
	if len(dims) == 0 {
		return 0, nil
	}
	n := 1
	for _, d := range dims {
		if d < 0 {
			return 0, ErrInvalidDims
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, ErrInvalidDims
		}
		n *= d
	}
	return n, nil
}

// numbers converts a numeric data element to float64 values
func (d *decoder) numbers(typ uint32, b []byte) ([]float64, error) {
	size := elementSize(typ)
	if size == 0 {
		return nil, fmt.Errorf("unsupported numeric element type %d", typ)
	}
	if len(b)%size != 0 {
		return nil, fmt.Errorf("element of type %d has %d bytes, not a multiple of %d", typ, len(b), size)
	}

	n := len(b) / size
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		p := b[i*size : (i+1)*size]
		switch typ {
		case miINT8:
			out[i] = float64(int8(p[0]))
		case miUINT8:
			out[i] = float64(p[0])
		case miINT16:
			out[i] = float64(int16(d.order.Uint16(p)))
		case miUINT16:
			out[i] = float64(d.order.Uint16(p))
		case miINT32:
			out[i] = float64(int32(d.order.Uint32(p)))
		case miUINT32:
			out[i] = float64(d.order.Uint32(p))
		case miSINGLE:
			out[i] = float64(math.Float32frombits(d.order.Uint32(p)))
		case miDOUBLE:
			out[i] = math.Float64frombits(d.order.Uint64(p))
		case miINT64:
			out[i] = float64(int64(d.order.Uint64(p)))
		case miUINT64:
			out[i] = float64(d.order.Uint64(p))
		}
	}
	return out, nil
}

func (d *decoder) chars(typ uint32, b []byte) ([]rune, error) {
	switch typ {
	case miUTF8:
		return []rune(string(b)), nil
	case miINT8, miUINT8:
		out := make([]rune, len(b))
		for i, c := range b {
			out[i] = rune(c)
		}
		return out, nil
	case miUINT16, miUTF16:
		units := make([]uint16, len(b)/2)
		for i := range units {
			units[i] = d.order.Uint16(b[2*i:])
		}
		return utf16.Decode(units), nil
	case miUTF32, miINT32, miUINT32:
		out := make([]rune, len(b)/4)
		for i := range out {
			out[i] = rune(d.order.Uint32(b[4*i:]))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported character element type %d", typ)
}

func elementSize(typ uint32) int {
	switch typ {
	case miINT8, miUINT8:
		return 1
	case miINT16, miUINT16:
		return 2
	case miINT32, miUINT32, miSINGLE:
		return 4
	case miDOUBLE, miINT64, miUINT64:
		return 8
	}
	return 0
}

func pad8(n uint64) uint64 {
	return (n + 7) &^ 7
}
