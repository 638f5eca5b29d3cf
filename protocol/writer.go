package protocol

import "encoding/binary"

// Writer is an append-only byte buffer.
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// AppendingTo returns a Writer that keeps appending to buf.
func AppendingTo(buf []byte) *Writer {
	return &Writer{buf: buf}
}

func (w *Writer) AppendByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *Writer) Append(b ...byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) AppendUint32LE(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) AppendGUID(guid [16]byte) {
	w.buf = append(w.buf, guid[:]...)
}

func (w *Writer) Len() int {
	return len(w.buf)
}

// Bytes returns the written bytes; the Writer keeps ownership.
func (w *Writer) Bytes() []byte {
	return w.buf
}
