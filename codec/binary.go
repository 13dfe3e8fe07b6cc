package codec

import (
	"encoding/binary"
	"math"

	stderr "github.com/pkg/errors"
)

// ErrShortBuffer is returned by a Reader that runs out of data
var ErrShortBuffer = stderr.New("unexpected end of buffer")

// Writer serializes values in the chain binary format
type Writer struct {
	buf []byte
}

// Bytes returns the serialized data
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteVarUint32 writes v as a LEB128 encoded integer
func (w *Writer) WriteVarUint32(v uint32) {
	w.buf = binary.AppendUvarint(w.buf, uint64(v))
}

func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteBytes writes a length prefixed byte sequence
func (w *Writer) WriteBytes(b []byte) {
	w.WriteVarUint32(uint32(len(b)))
	w.WriteRaw(b)
}

func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

func (w *Writer) WriteName(n Name) {
	w.WriteUint64(uint64(n))
}

// Reader deserializes values in the chain binary format
type Reader struct {
	buf []byte
	pos int
}

// NewReader creates a Reader over b
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrShortBuffer
	}

	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.ReadRaw(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, stderr.Errorf("invalid bool value %d", v)
	}
	return v == 1, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.ReadRaw(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.ReadRaw(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.ReadRaw(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadVarUint32() (uint32, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n == 0 {
		return 0, ErrShortBuffer
	}
	if n < 0 || v > math.MaxUint32 {
		return 0, stderr.New("varuint32 overflow")
	}

	r.pos += n
	return uint32(v), nil
}

// ReadBytes reads a length prefixed byte sequence. The returned slice
// is a copy
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadVarUint32()
	if err != nil {
		return nil, err
	}

	b, err := r.ReadRaw(int(n))
	if err != nil {
		return nil, err
	}

	return append([]byte{}, b...), nil
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	return string(b), err
}

func (r *Reader) ReadName() (Name, error) {
	v, err := r.ReadUint64()
	return Name(v), err
}
