package wire

import "encoding/binary"

// Reader decodes little-endian fields from a frame payload.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadU8 reads one unsigned byte.
func (r *Reader) ReadU8() byte {
	if r.off >= len(r.data) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadBool reads one byte as a boolean (0 = false, anything else = true).
func (r *Reader) ReadBool() bool {
	return r.ReadU8() != 0
}

// ReadU16 reads 2 bytes little-endian.
func (r *Reader) ReadU16() uint16 {
	if r.off+2 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadU32 reads 4 bytes little-endian.
func (r *Reader) ReadU32() uint32 {
	if r.off+4 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// ReadI32 reads 4 bytes little-endian as a signed integer.
func (r *Reader) ReadI32() int32 {
	return int32(r.ReadU32())
}

// ReadString reads a length-prefixed (uint16) UTF-8 string.
func (r *Reader) ReadString() string {
	n := int(r.ReadU16())
	if n == 0 {
		return ""
	}
	if r.off+n > len(r.data) {
		n = len(r.data) - r.off
	}
	s := string(r.data[r.off : r.off+n])
	r.off += n
	return s
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if r.off+n > len(r.data) {
		remaining := r.data[r.off:]
		r.off = len(r.data)
		out := make([]byte, len(remaining))
		copy(out, remaining)
		return out
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Err reports whether the read offset lies past the end of the payload.
// Reads never advance past the end (a short read returns zero or the
// available remainder), so Err always returns false and does not report a
// truncated payload.
func (r *Reader) Err() bool {
	return r.off > len(r.data)
}

// Writer builds a frame payload. All multi-byte writes are little-endian.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func (w *Writer) WriteU8(v byte) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteI32(v int32) {
	w.WriteU32(uint32(v))
}

// WriteString writes a uint16 length prefix followed by the UTF-8 bytes.
// Strings longer than 65535 bytes are truncated to 65535; no shorter
// per-field maximum is applied here (round-trip law §8: "modulo string
// trimming to declared maxima").
func (w *Writer) WriteString(s string) {
	b := []byte(s)
	if len(b) > 0xFFFF {
		b = b[:0xFFFF]
	}
	w.WriteU16(uint16(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}
