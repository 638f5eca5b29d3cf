/*
Package protocol holds the byte-level plumbing shared by the codecs: a
bounds-checked Reader, a growable Writer, and the compact TLV envelope the
state store wraps its values in.

# TLV Record Format

Three header forms are selected by body size:

 1. Tiny (1 byte), bodies of 0-9 bytes, lowercase types only:
    [('0' + body_length)]
 2. Short (2 bytes), bodies up to 255 bytes:
    [lowercase_type, body_length]
 3. Long (5 bytes), bodies up to 2GB:
    [uppercase_type, length_as_4byte_little_endian]

Record types are the letters A-Z. A lowercase type passed to Append/Record
permits the tiny form; a tiny record loses its type and matches any lit on
TakeWary.
*/
package protocol

import (
	"encoding/binary"
	"errors"
)

const CaseBit uint8 = 'a' - 'A'

var (
	ErrIncomplete = errors.New("incomplete data")
	ErrBadRecord  = errors.New("bad TLV record format")
)

// ReadHeader analyzes a TLV record header.
//
// Returns:
//   - lit: record type ('A'-'Z', '0' for tiny, '-' for error, 0 for incomplete)
//   - hdrlen: header length (1, 2, or 5 bytes)
//   - bodylen: body length in bytes
func ReadHeader(data []byte) (lit byte, hdrlen, bodylen int) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	dlit := data[0]
	if dlit >= '0' && dlit <= '9' { // tiny
		lit = '0'
		bodylen = int(dlit - '0')
		hdrlen = 1
	} else if dlit >= 'a' && dlit <= 'z' { // short
		if len(data) < 2 {
			return
		}
		lit = dlit - CaseBit
		hdrlen = 2
		bodylen = int(data[1])
	} else if dlit >= 'A' && dlit <= 'Z' { // long
		if len(data) < 5 {
			return
		}
		bl := binary.LittleEndian.Uint32(data[1:5])
		if bl > 0x7fffffff {
			lit = '-'
			return
		}
		lit = dlit
		bodylen = int(bl)
		hdrlen = 5
	} else {
		lit = '-'
	}
	return
}

// AppendHeader appends a TLV header for a body of bodylen bytes.
func AppendHeader(into []byte, lit byte, bodylen int) (ret []byte) {
	biglit := lit &^ CaseBit
	if biglit < 'A' || biglit > 'Z' {
		panic("TLV record type is A..Z")
	}
	if bodylen < 10 && (lit&CaseBit) != 0 {
		ret = append(into, byte('0'+bodylen))
	} else if bodylen > 0xff {
		if bodylen > 0x7fffffff {
			panic("oversized TLV record")
		}
		ret = append(into, biglit)
		ret = binary.LittleEndian.AppendUint32(ret, uint32(bodylen))
	} else {
		ret = append(into, lit|CaseBit, byte(bodylen))
	}
	return ret
}

// TakeWary extracts a record of the given type from untrusted data.
//
// Returns:
//   - body: record body content, nil on error
//   - rest: remaining data, original data if incomplete
//   - err: ErrIncomplete or ErrBadRecord
func TakeWary(lit byte, data []byte) (body, rest []byte, err error) {
	flit, hdrlen, bodylen := ReadHeader(data)
	if flit == '-' {
		return nil, nil, ErrBadRecord
	}
	if flit == 0 || hdrlen+bodylen > len(data) {
		return nil, data, ErrIncomplete
	}
	if flit != lit && flit != '0' {
		return nil, nil, ErrBadRecord
	}
	body = data[hdrlen : hdrlen+bodylen]
	rest = data[hdrlen+bodylen:]
	return
}

// TakeAnyWary extracts the next record whatever its type.
func TakeAnyWary(data []byte) (lit byte, body, rest []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil, ErrIncomplete
	}
	lit, _, _ = ReadHeader(data)
	if lit == '-' {
		return 0, nil, nil, ErrBadRecord
	}
	if lit == 0 {
		return 0, nil, data, ErrIncomplete
	}
	body, rest, err = TakeWary(lit, data)
	if err != nil {
		lit = 0
	}
	return
}

// TotalLen calculates the total length of multiple byte slices.
func TotalLen(inputs [][]byte) (sum int) {
	for _, input := range inputs {
		sum += len(input)
	}
	return
}

// Append constructs a complete TLV record and appends it to the buffer.
func Append(into []byte, lit byte, body ...[]byte) (res []byte) {
	total := TotalLen(body)
	res = AppendHeader(into, lit, total)
	for _, b := range body {
		res = append(res, b...)
	}
	return res
}

// Record creates a complete TLV record with pre-allocated capacity.
func Record(lit byte, body ...[]byte) []byte {
	return Append(make([]byte, 0, TotalLen(body)+5), lit, body...)
}
