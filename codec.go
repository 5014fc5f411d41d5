package canopen

import (
	"errors"
	"fmt"
	"math/big"
)

// Known gap: only VISIBLE_STRING gets its own representation. Booleans,
// reals and byte arrays are shown and parsed as integers.

// Decode renders a wire value in its display form. Visible strings pass
// through unmodified; every other type is shown as a 0x prefixed hex
// integer without padding.
func Decode(wire []byte, meta DictionaryEntryMeta) string {
	if meta.DataType == VisibleString {
		return string(wire)
	}

	v := new(big.Int).SetBytes(reversed(wire))
	if meta.DataType.Signed() && len(wire) > 0 && wire[len(wire)-1]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(8*len(wire))))
	}
	return fmt.Sprintf("%#x", v)
}

// Encode parses a display value into its wire form. Integers accept any
// base prefixed literal (0x, 0o, 0b) as well as plain decimal.
func Encode(text string, meta DictionaryEntryMeta) ([]byte, error) {
	if meta.DataType == VisibleString {
		return []byte(text), nil
	}

	v, ok := new(big.Int).SetString(text, 0)
	if !ok {
		return nil, &FormatError{Text: text, DataType: meta.DataType}
	}

	size := meta.DataType.Size()
	if size == 0 {
		if v.Sign() < 0 {
			return nil, &FormatError{Text: text, DataType: meta.DataType, Err: errors.New("negative value for variable length type")}
		}
		size = max((v.BitLen()+7)/8, 1)
	}

	bits := uint(8 * size)
	lo, hi := big.NewInt(0), new(big.Int).Lsh(big.NewInt(1), bits)
	if meta.DataType.Signed() {
		hi.Rsh(hi, 1)
		lo.Neg(hi)
	}
	if v.Cmp(lo) < 0 || v.Cmp(hi) >= 0 {
		return nil, &FormatError{Text: text, DataType: meta.DataType, Err: fmt.Errorf("out of range for %d bytes", size)}
	}
	if v.Sign() < 0 {
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), bits))
	}

	return reversed(v.FillBytes(make([]byte, size))), nil
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}
