package matfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
	"unicode/utf16"
)

const maxFieldNameLen = 63

// Encoder writes Level 5 MAT-files in little-endian byte order
type Encoder struct {
	w             io.Writer
	order         binary.ByteOrder
	compress      bool
	headerText    string
	headerWritten bool
}

// EncoderOption customizes an Encoder
type EncoderOption func(*Encoder)

// WithCompression stores each variable as a zlib-compressed element
func WithCompression() EncoderOption {
	return func(e *Encoder) {
		e.compress = true
	}
}

// WithHeaderText replaces the descriptive text at the start of the header
func WithHeaderText(text string) EncoderOption {
	return func(e *Encoder) {
		e.headerText = text
	}
}

// NewEncoder creates an encoder writing to w
func NewEncoder(w io.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		w:          w,
		order:      binary.LittleEndian,
		headerText: "MATLAB 5.0 MAT-file, Platform: GLNXA64, Created on: " + time.Now().Format("Mon Jan _2 15:04:05 2006"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Marshal encodes variables into an in-memory MAT-file
func Marshal(vars []*Array, opts ...EncoderOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf, opts...).Encode(vars...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the header (once) followed by the given top-level variables
func (e *Encoder) Encode(vars ...*Array) error {
	if !e.headerWritten {
		if err := e.writeHeader(); err != nil {
			return err
		}
		e.headerWritten = true
	}

	for _, v := range vars {
		if v.Name == "" {
			return fmt.Errorf("top-level variables must be named")
		}

		var body bytes.Buffer
		if err := e.matrix(&body, v); err != nil {
			return fmt.Errorf("encoding %q: %w", v.Name, err)
		}

		if !e.compress {
			if _, err := e.w.Write(body.Bytes()); err != nil {
				return err
			}
			continue
		}

		var zbuf bytes.Buffer
		zw := zlib.NewWriter(&zbuf)
		if _, err := zw.Write(body.Bytes()); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}

		var tag bytes.Buffer
		e.tag(&tag, miCOMPRESSED, zbuf.Len())
		if _, err := e.w.Write(tag.Bytes()); err != nil {
			return err
		}
		if _, err := e.w.Write(zbuf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeHeader() error {
	header := make([]byte, headerLen)
	for i := 0; i < headerTextLen; i++ {
		header[i] = ' '
	}
	copy(header[:headerTextLen], e.headerText)
	// bytes 116..123 hold the subsystem data offset, left zero
	e.order.PutUint16(header[124:126], 0x0100)
	e.order.PutUint16(header[126:128], 'M'<<8|'I')
	_, err := e.w.Write(header)
	return err
}

func (e *Encoder) tag(buf *bytes.Buffer, typ uint32, n int) {
	var b [8]byte
	e.order.PutUint32(b[0:4], typ)
	e.order.PutUint32(b[4:8], uint32(n))
	buf.Write(b[:])
}

// element writes a data element, using the small format for payloads of
// one to four bytes and padding regular payloads to 8 bytes
func (e *Encoder) element(buf *bytes.Buffer, typ uint32, data []byte) {
	if n := len(data); n > 0 && n <= 4 {
		var b [8]byte
		e.order.PutUint32(b[0:4], uint32(n)<<16|typ)
		copy(b[4:], data)
		buf.Write(b[:])
		return
	}

	e.tag(buf, typ, len(data))
	buf.Write(data)
	if pad := int(pad8(uint64(len(data)))) - len(data); pad > 0 {
		buf.Write(make([]byte, pad))
	}
}

func (e *Encoder) matrix(buf *bytes.Buffer, a *Array) error {
	var body bytes.Buffer

	flags := uint32(a.Class)
	if a.Logical {
		flags |= flagLogical
	}
	if len(a.Imag) > 0 {
		flags |= flagComplex
	}
	flagBytes := make([]byte, 8)
	e.order.PutUint32(flagBytes[0:4], flags)
	e.element(&body, miUINT32, flagBytes)

	dims := a.Dims
	if len(dims) < 2 {
		return fmt.Errorf("arrays need at least two dimensions, got %v", dims)
	}
	dimBytes := make([]byte, 4*len(dims))
	for i, d := range dims {
		e.order.PutUint32(dimBytes[4*i:], uint32(int32(d)))
	}
	e.element(&body, miINT32, dimBytes)
	e.element(&body, miINT8, []byte(a.Name))

	switch {
	case a.Class.IsNumeric():
		if len(a.Real) != a.Len() {
			return fmt.Errorf("%q has %d values for dimensions %v", a.Name, len(a.Real), dims)
		}
		typ, data := e.numbers(a.Class, a.Real)
		e.element(&body, typ, data)
		if len(a.Imag) > 0 {
			if len(a.Imag) != len(a.Real) {
				return fmt.Errorf("%q: imaginary part has %d values, real part %d", a.Name, len(a.Imag), len(a.Real))
			}
			typ, data := e.numbers(a.Class, a.Imag)
			e.element(&body, typ, data)
		}

	case a.Class == ClassChar:
		units := utf16.Encode([]rune(a.Text))
		data := make([]byte, 2*len(units))
		for i, u := range units {
			e.order.PutUint16(data[2*i:], u)
		}
		e.element(&body, miUINT16, data)

	case a.Class == ClassStruct:
		if len(a.Records) != a.Len() {
			return fmt.Errorf("%q has %d records for dimensions %v", a.Name, len(a.Records), dims)
		}
		nameLen := 32
		for _, f := range a.Fields {
			if len(f) > maxFieldNameLen {
				return fmt.Errorf("%q: field name %q is longer than %d characters", a.Name, f, maxFieldNameLen)
			}
			if len(f)+1 > nameLen {
				nameLen = len(f) + 1
			}
		}
		lenBytes := make([]byte, 4)
		e.order.PutUint32(lenBytes, uint32(nameLen))
		e.element(&body, miINT32, lenBytes)

		names := make([]byte, nameLen*len(a.Fields))
		for i, f := range a.Fields {
			copy(names[i*nameLen:], f)
		}
		e.element(&body, miINT8, names)

		for i, rec := range a.Records {
			for _, f := range a.Fields {
				v, ok := rec[f]
				if !ok || v == nil {
					v = NewEmpty("")
				}
				field := *v
				field.Name = ""
				if err := e.matrix(&body, &field); err != nil {
					return fmt.Errorf("%q(%d).%s: %w", a.Name, i, f, err)
				}
			}
		}

	case a.Class == ClassCell:
		if len(a.Cells) != a.Len() {
			return fmt.Errorf("%q has %d cells for dimensions %v", a.Name, len(a.Cells), dims)
		}
		for i, c := range a.Cells {
			if c == nil {
				c = NewEmpty("")
			}
			cell := *c
			cell.Name = ""
			if err := e.matrix(&body, &cell); err != nil {
				return fmt.Errorf("%q{%d}: %w", a.Name, i, err)
			}
		}

	default:
		return fmt.Errorf("%q: writing %s arrays is not supported", a.Name, a.Class)
	}

	e.tag(buf, miMATRIX, body.Len())
	buf.Write(body.Bytes())
	return nil
}

// numbers encodes values using the storage type that matches the class
func (e *Encoder) numbers(class Class, vals []float64) (uint32, []byte) {
	switch class {
	case ClassSingle:
		out := make([]byte, 4*len(vals))
		for i, v := range vals {
			e.order.PutUint32(out[4*i:], math.Float32bits(float32(v)))
		}
		return miSINGLE, out
	case ClassInt8:
		out := make([]byte, len(vals))
		for i, v := range vals {
			out[i] = byte(int8(v))
		}
		return miINT8, out
	case ClassUint8:
		out := make([]byte, len(vals))
		for i, v := range vals {
			out[i] = byte(v)
		}
		return miUINT8, out
	case ClassInt16:
		out := make([]byte, 2*len(vals))
		for i, v := range vals {
			e.order.PutUint16(out[2*i:], uint16(int16(v)))
		}
		return miINT16, out
	case ClassUint16:
		out := make([]byte, 2*len(vals))
		for i, v := range vals {
			e.order.PutUint16(out[2*i:], uint16(v))
		}
		return miUINT16, out
	case ClassInt32:
		out := make([]byte, 4*len(vals))
		for i, v := range vals {
			e.order.PutUint32(out[4*i:], uint32(int32(v)))
		}
		return miINT32, out
	case ClassUint32:
		out := make([]byte, 4*len(vals))
		for i, v := range vals {
			e.order.PutUint32(out[4*i:], uint32(v))
		}
		return miUINT32, out
	case ClassInt64:
		out := make([]byte, 8*len(vals))
		for i, v := range vals {
			e.order.PutUint64(out[8*i:], uint64(int64(v)))
		}
		return miINT64, out
	case ClassUint64:
		out := make([]byte, 8*len(vals))
		for i, v := range vals {
			e.order.PutUint64(out[8*i:], uint64(v))
		}
		return miUINT64, out
	}

	out := make([]byte, 8*len(vals))
	for i, v := range vals {
		e.order.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return miDOUBLE, out
}
