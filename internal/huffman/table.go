package huffman

import (
	"encoding/binary"

	"github.com/chriscow/irmcodec/internal/rle"
	"github.com/chriscow/irmcodec/pkg/irm"
)

// Serialized table layout, big-endian:
//
//	entry_count:uint32
//	entry_count times:
//	    value:int16  count:uint16  code_len:uint8  code:ceil(code_len/8) bytes
//
// Codes are stored left-aligned, MSB first, zero-padded in the last byte.

const entryFixedSize = 5

// MarshalBinary serializes the table in code order.
func (t *Table) MarshalBinary() ([]byte, error) {
	size := 4
	for _, e := range t.entries {
		size += entryFixedSize + codeBytes(e.Code.Len)
	}

	out := make([]byte, 0, size)
	out = binary.BigEndian.AppendUint32(out, uint32(len(t.entries)))
	for _, e := range t.entries {
		out = binary.BigEndian.AppendUint16(out, uint16(e.Symbol.Value))
		out = binary.BigEndian.AppendUint16(out, e.Symbol.Count)
		out = append(out, e.Code.Len)

		n := codeBytes(e.Code.Len)
		aligned := e.Code.Bits << uint(n*8-int(e.Code.Len))
		for i := n - 1; i >= 0; i-- {
			out = append(out, byte(aligned>>(uint(i)*8)))
		}
	}
	return out, nil
}

// UnmarshalTable parses a table written by MarshalBinary and validates it.
// It returns the table and the number of bytes consumed.
func UnmarshalTable(data []byte) (*Table, int, error) {
	if len(data) < 4 {
		return nil, 0, irm.Errorf(irm.ErrCorruptContainer, "huffman.UnmarshalTable", "table too short: %d bytes", len(data))
	}
	count := binary.BigEndian.Uint32(data)
	pos := 4

	// each entry is at least entryFixedSize+1 bytes
	if uint64(count)*(entryFixedSize+1) > uint64(len(data)-pos) {
		return nil, 0, irm.Errorf(irm.ErrCorruptContainer, "huffman.UnmarshalTable",
			"%d entries do not fit in %d bytes", count, len(data)-pos)
	}

	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(data)-pos < entryFixedSize {
			return nil, 0, errTruncated(i)
		}
		e := Entry{
			Symbol: rle.Pair{
				Value: int16(binary.BigEndian.Uint16(data[pos:])),
				Count: binary.BigEndian.Uint16(data[pos+2:]),
			},
			Code: Code{Len: data[pos+4]},
		}
		pos += entryFixedSize

		if e.Code.Len == 0 || e.Code.Len > MaxCodeLen {
			return nil, 0, irm.Errorf(irm.ErrCorruptContainer, "huffman.UnmarshalTable",
				"entry %d has code length %d", i, e.Code.Len)
		}
		if e.Symbol.Count == 0 || e.Symbol.Count > rle.MaxRun {
			return nil, 0, irm.Errorf(irm.ErrCorruptContainer, "huffman.UnmarshalTable",
				"entry %d has run length %d", i, e.Symbol.Count)
		}

		n := codeBytes(e.Code.Len)
		if len(data)-pos < n {
			return nil, 0, errTruncated(i)
		}
		var aligned uint64
		for _, b := range data[pos : pos+n] {
			aligned = aligned<<8 | uint64(b)
		}
		e.Code.Bits = aligned >> uint(n*8-int(e.Code.Len))
		pos += n

		entries = append(entries, e)
	}

	t, err := NewTable(entries)
	if err != nil {
		return nil, 0, err
	}
	return t, pos, nil
}

func codeBytes(length uint8) int {
	return (int(length) + 7) / 8
}

func errTruncated(entry uint32) error {
	return irm.Errorf(irm.ErrCorruptContainer, "huffman.UnmarshalTable", "table truncated in entry %d", entry)
}
