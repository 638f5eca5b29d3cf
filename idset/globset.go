package idset

import (
	"github.com/pkg/errors"

	"github.com/openchange/mapisync/protocol"
)

// GLOBSET commands, see MS-OXCFXICS 2.2.2.6.
const (
	CmdEnd     = 0x00
	CmdPush1   = 0x01
	CmdPush6   = 0x06
	CmdBitmask = 0x42
	CmdPop     = 0x50
	CmdRange   = 0x52
)

// GlobCntLen is the width of a global counter on the wire.
const GlobCntLen = 6

// globStack is the decoder's common-prefix stack: at most six bytes
// spread over at most six pushes.
type globStack struct {
	bytes [GlobCntLen]byte
	size  int
	lens  [GlobCntLen]int
	depth int
}

func (s *globStack) push(b []byte) bool {
	if s.depth == GlobCntLen || s.size+len(b) > GlobCntLen {
		return false
	}
	copy(s.bytes[s.size:], b)
	s.size += len(b)
	s.lens[s.depth] = len(b)
	s.depth++
	return true
}

func (s *globStack) pop() bool {
	if s.depth == 0 {
		return false
	}
	s.depth--
	s.size -= s.lens[s.depth]
	return true
}

// value is the positional value of the pushed prefix.
func (s *globStack) value() uint64 {
	return positional(s.bytes[:s.size], 0)
}

// positional reads bytes with weight 256^i at position shift/8+i.
func positional(b []byte, shift uint) (v uint64) {
	for i, c := range b {
		v |= uint64(c) << (shift + 8*uint(i))
	}
	return
}

func globBytes(v uint64) (b [GlobCntLen]byte) {
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return
}

// DecodeGlobset decodes one replica's GLOBSET from the head of buf.
// consumed counts every byte up to and including the End command, so the
// caller can step over the record. Any failure invalidates the whole
// GLOBSET; no partial ranges are returned.
func DecodeGlobset(buf []byte) (ranges []Range, consumed int, err error) {
	r := protocol.NewReader(buf)
	var stack globStack
	for {
		at := r.Pos()
		op, rerr := r.ReadByte()
		if rerr != nil {
			return nil, 0, errors.Wrapf(ErrMalformedInput, "GLOBSET has no End command (%d bytes)", len(buf))
		}
		switch {
		case op == CmdEnd:
			return ranges, r.Pos(), nil

		case op >= CmdPush1 && op <= CmdPush6:
			b, rerr := r.ReadBytes(int(op))
			if rerr != nil {
				return nil, 0, errors.Wrapf(ErrMalformedInput, "push(%d) at offset %d", op, at)
			}
			if !stack.push(b) {
				return nil, 0, errors.Wrapf(ErrInvariantViolation, "push(%d) at offset %d over %d stacked bytes", op, at, stack.size)
			}
			if stack.size == GlobCntLen {
				v := stack.value()
				ranges = append(ranges, Range{Low: v, High: v})
				stack.pop()
			}

		case op == CmdPop:
			if !stack.pop() {
				return nil, 0, errors.Wrapf(ErrInvariantViolation, "pop at offset %d on empty stack", at)
			}

		case op == CmdRange:
			k := GlobCntLen - stack.size
			lo, rerr := r.ReadBytes(k)
			if rerr != nil {
				return nil, 0, errors.Wrapf(ErrMalformedInput, "range low at offset %d", at)
			}
			hi, rerr := r.ReadBytes(k)
			if rerr != nil {
				return nil, 0, errors.Wrapf(ErrMalformedInput, "range high at offset %d", at)
			}
			prefix := stack.value()
			shift := uint(8 * stack.size)
			ranges = append(ranges, Range{
				Low:  prefix | positional(lo, shift),
				High: prefix | positional(hi, shift),
			})

		case op == CmdBitmask:
			b, rerr := r.ReadBytes(2)
			if rerr != nil {
				return nil, 0, errors.Wrapf(ErrMalformedInput, "bitmask at offset %d", at)
			}
			if ranges, err = appendBitmask(ranges, stack.value()<<8, b[0], b[1]); err != nil {
				return nil, 0, errors.Wrapf(err, "bitmask at offset %d", at)
			}

		default:
			return nil, 0, errors.Wrapf(ErrUnknownCommand, "command 0x%02x at offset %d", op, at)
		}
	}
}

// appendBitmask expands a bitmask command: base|b0 is always present,
// base|(b0+1+i) is present iff bit i of mask is set. Each run of present
// counters becomes one range. A set bit past the low byte is malformed.
func appendBitmask(ranges []Range, base uint64, b0, mask byte) ([]Range, error) {
	run := Range{Low: base | uint64(b0), High: base | uint64(b0)}
	open := true
	for i := uint64(0); i < 8; i++ {
		low := uint64(b0) + 1 + i
		if mask&(1<<i) != 0 {
			if low > 0xff {
				return nil, errors.Wrapf(ErrMalformedInput, "bit %d of 0x%02x overflows low byte 0x%02x", i, mask, b0)
			}
			if open {
				run.High = base | low
			} else {
				run = Range{Low: base | low, High: base | low}
				open = true
			}
		} else if open {
			ranges = append(ranges, run)
			open = false
		}
	}
	if open {
		ranges = append(ranges, run)
	}
	return ranges, nil
}

// AppendGlobset encodes ranges, in the order given, followed by End.
// Counters are truncated to 48 bits. Bitmask is never emitted.
func AppendGlobset(buf []byte, ranges []Range) []byte {
	w := protocol.AppendingTo(buf)
	writeGlobset(w, ranges)
	return w.Bytes()
}

func writeGlobset(w *protocol.Writer, ranges []Range) {
	for _, r := range ranges {
		lb, hb := globBytes(r.Low&MaxGlobCnt), globBytes(r.High&MaxGlobCnt)
		if lb == hb {
			w.AppendByte(CmdPush6)
			w.Append(lb[:]...)
			continue
		}
		i := 0
		for i < GlobCntLen-1 && lb[i] == hb[i] {
			i++
		}
		if i > 0 {
			w.AppendByte(byte(i))
			w.Append(lb[:i]...)
		}
		w.AppendByte(CmdRange)
		w.Append(lb[i:]...)
		w.Append(hb[i:]...)
		if i > 0 {
			w.AppendByte(CmdPop)
		}
	}
	w.AppendByte(CmdEnd)
}
