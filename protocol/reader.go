package protocol

import "encoding/binary"

// Reader is a bounds-checked cursor over a byte slice. A failed read
// returns ErrIncomplete and leaves the cursor where it was.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos is the number of bytes consumed so far.
func (r *Reader) Pos() int {
	return r.pos
}

// Len is the number of bytes left.
func (r *Reader) Len() int {
	return len(r.buf) - r.pos
}

func (r *Reader) Rest() []byte {
	return r.buf[r.pos:]
}

func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, ErrIncomplete
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes returns the next n bytes. The result aliases the underlying
// buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, ErrIncomplete
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) ReadGUID() (guid [16]byte, err error) {
	b, err := r.ReadBytes(len(guid))
	if err == nil {
		copy(guid[:], b)
	}
	return
}

func (r *Reader) ReadUint32LE() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}
