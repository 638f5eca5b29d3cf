package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTLVAppend(t *testing.T) {
	buf := []byte{}
	buf = Append(buf, 'A', []byte{'A'})
	buf = Append(buf, 'b', []byte{'B', 'B'})
	correct2 := []byte{'a', 1, 'A', '2', 'B', 'B'}
	assert.Equal(t, correct2, buf, "basic TLV fail")

	var c256 [256]byte
	for n := range c256 {
		c256[n] = 'c'
	}
	buf = Append(buf, 'C', c256[:])
	assert.Equal(t, len(correct2)+1+4+len(c256), len(buf))
	assert.Equal(t, uint8('C'), buf[len(correct2)])
	assert.Equal(t, uint8(1), buf[len(correct2)+2])

	lit, body, buf, err := TakeAnyWary(buf)
	assert.Nil(t, err)
	assert.Equal(t, uint8('A'), lit)
	assert.Equal(t, []byte{'A'}, body)

	body2, rest, err2 := TakeWary('B', buf)
	assert.Nil(t, err2)
	assert.Equal(t, []byte{'B', 'B'}, body2)

	body3, rest, err3 := TakeWary('C', rest)
	assert.Nil(t, err3)
	assert.Equal(t, 256, len(body3))
	assert.Empty(t, rest)
}

func TestTLVWary(t *testing.T) {
	rec := Record('M', []byte("hello"))

	_, rest, err := TakeWary('M', rec[:3])
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, rec[:3], rest)

	_, _, err = TakeWary('X', rec)
	assert.ErrorIs(t, err, ErrBadRecord)

	_, _, _, err = TakeAnyWary([]byte{'#', 1, 2})
	assert.ErrorIs(t, err, ErrBadRecord)

	_, _, _, err = TakeAnyWary(nil)
	assert.ErrorIs(t, err, ErrIncomplete)

	body, rest, err := TakeWary('M', rec)
	assert.Nil(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Empty(t, rest)

	lit, body, _, err := TakeAnyWary(Record('q', []byte{1, 2}))
	assert.Nil(t, err)
	assert.Equal(t, uint8('0'), lit)
	assert.Equal(t, []byte{1, 2}, body)
}
