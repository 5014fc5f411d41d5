package canopen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		wire     []byte
		dataType DataType
		want     string
	}{
		{name: "unsigned32", wire: []byte{0x91, 0x01, 0x03, 0x00}, dataType: Unsigned32, want: "0x30191"},
		{name: "unsigned16", wire: []byte{0x64, 0x00}, dataType: Unsigned16, want: "0x64"},
		{name: "zero", wire: []byte{0x00}, dataType: Unsigned8, want: "0x0"},
		{name: "negative integer16", wire: []byte{0xFE, 0xFF}, dataType: Integer16, want: "-0x2"},
		{name: "positive integer16", wire: []byte{0xFE, 0x7F}, dataType: Integer16, want: "0x7ffe"},
		{name: "visible string", wire: []byte("BK5120"), dataType: VisibleString, want: "BK5120"},
		{name: "empty string", wire: []byte{}, dataType: VisibleString, want: ""},
		{name: "boolean as integer", wire: []byte{0x01}, dataType: Boolean, want: "0x1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.wire, DictionaryEntryMeta{DataType: tt.dataType}))
		})
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		dataType DataType
		want     []byte
		wantErr  bool
	}{
		{name: "hex", text: "0x10", dataType: Unsigned16, want: []byte{0x10, 0x00}},
		{name: "decimal", text: "16", dataType: Unsigned16, want: []byte{0x10, 0x00}},
		{name: "binary", text: "0b10000", dataType: Unsigned16, want: []byte{0x10, 0x00}},
		{name: "octal", text: "0o20", dataType: Unsigned16, want: []byte{0x10, 0x00}},
		{name: "unsigned32 little endian", text: "0x30191", dataType: Unsigned32, want: []byte{0x91, 0x01, 0x03, 0x00}},
		{name: "negative integer8", text: "-1", dataType: Integer8, want: []byte{0xFF}},
		{name: "integer16 minimum", text: "-32768", dataType: Integer16, want: []byte{0x00, 0x80}},
		{name: "visible string", text: "abc", dataType: VisibleString, want: []byte("abc")},
		{name: "string with digits", text: "0x10", dataType: VisibleString, want: []byte("0x10")},
		{name: "not a number", text: "abc", dataType: Unsigned8, wantErr: true},
		{name: "empty", text: "", dataType: Unsigned8, wantErr: true},
		{name: "unsigned8 overflow", text: "256", dataType: Unsigned8, wantErr: true},
		{name: "negative unsigned", text: "-1", dataType: Unsigned16, wantErr: true},
		{name: "integer8 overflow", text: "128", dataType: Integer8, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.text, DictionaryEntryMeta{DataType: tt.dataType})
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrFormat)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []struct {
		text     string
		dataType DataType
	}{
		{"0x1", Unsigned8},
		{"0xffff", Unsigned16},
		{"0x12345678", Unsigned32},
		{"-0x80", Integer8},
		{"-0x1234", Integer32},
		{"0x7fffffffffffffff", Integer64},
		{"0xffffffffffffffff", Unsigned64},
		{"0xabcdef", Unsigned24},
		{"Beckhoff", VisibleString},
	}
	for _, v := range values {
		meta := DictionaryEntryMeta{DataType: v.dataType}
		wire, err := Encode(v.text, meta)
		require.NoError(t, err, v.text)
		assert.Equal(t, v.text, Decode(wire, meta))
	}
}
