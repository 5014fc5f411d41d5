package canopen

import "fmt"

// DataType is the CiA 301 data type tag of a dictionary entry.
type DataType uint16

const (
	Boolean        DataType = 0x01
	Integer8       DataType = 0x02
	Integer16      DataType = 0x03
	Integer32      DataType = 0x04
	Unsigned8      DataType = 0x05
	Unsigned16     DataType = 0x06
	Unsigned32     DataType = 0x07
	Real32         DataType = 0x08
	VisibleString  DataType = 0x09
	OctetString    DataType = 0x0A
	UnicodeString  DataType = 0x0B
	TimeOfDay      DataType = 0x0C
	TimeDifference DataType = 0x0D
	Domain         DataType = 0x0F
	Integer24      DataType = 0x10
	Real64         DataType = 0x11
	Integer40      DataType = 0x12
	Integer48      DataType = 0x13
	Integer56      DataType = 0x14
	Integer64      DataType = 0x15
	Unsigned24     DataType = 0x16
	Unsigned40     DataType = 0x18
	Unsigned48     DataType = 0x19
	Unsigned56     DataType = 0x1A
	Unsigned64     DataType = 0x1B
)

var dataTypeNames = map[DataType]string{
	Boolean:        "BOOLEAN",
	Integer8:       "INTEGER8",
	Integer16:      "INTEGER16",
	Integer32:      "INTEGER32",
	Unsigned8:      "UNSIGNED8",
	Unsigned16:     "UNSIGNED16",
	Unsigned32:     "UNSIGNED32",
	Real32:         "REAL32",
	VisibleString:  "VISIBLE_STRING",
	OctetString:    "OCTET_STRING",
	UnicodeString:  "UNICODE_STRING",
	TimeOfDay:      "TIME_OF_DAY",
	TimeDifference: "TIME_DIFFERENCE",
	Domain:         "DOMAIN",
	Integer24:      "INTEGER24",
	Real64:         "REAL64",
	Integer40:      "INTEGER40",
	Integer48:      "INTEGER48",
	Integer56:      "INTEGER56",
	Integer64:      "INTEGER64",
	Unsigned24:     "UNSIGNED24",
	Unsigned40:     "UNSIGNED40",
	Unsigned48:     "UNSIGNED48",
	Unsigned56:     "UNSIGNED56",
	Unsigned64:     "UNSIGNED64",
}

// dataTypeSizes holds the wire width in bytes of fixed size types.
var dataTypeSizes = map[DataType]int{
	Boolean:        1,
	Integer8:       1,
	Integer16:      2,
	Integer24:      3,
	Integer32:      4,
	Integer40:      5,
	Integer48:      6,
	Integer56:      7,
	Integer64:      8,
	Unsigned8:      1,
	Unsigned16:     2,
	Unsigned24:     3,
	Unsigned32:     4,
	Unsigned40:     5,
	Unsigned48:     6,
	Unsigned56:     7,
	Unsigned64:     8,
	Real32:         4,
	Real64:         8,
	TimeOfDay:      6,
	TimeDifference: 6,
}

func (dt DataType) String() string {
	if name, ok := dataTypeNames[dt]; ok {
		return name
	}
	return fmt.Sprintf("DATATYPE(0x%04x)", uint16(dt))
}

// Size returns the wire width in bytes, or 0 for variable length types.
func (dt DataType) Size() int {
	return dataTypeSizes[dt]
}

// Signed reports whether the type is a two's complement integer.
func (dt DataType) Signed() bool {
	switch dt {
	case Integer8, Integer16, Integer24, Integer32, Integer40, Integer48, Integer56, Integer64:
		return true
	}
	return false
}
