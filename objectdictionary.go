package canopen

import (
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// Object types as found in the ObjectType key of an EDS section.
const (
	ObjectTypeDomain uint8 = 0x2
	ObjectTypeVar    uint8 = 0x7
	ObjectTypeArray  uint8 = 0x8
	ObjectTypeRecord uint8 = 0x9
)

//go:embed ds301.eds
var ds301EDS []byte

var (
	edsObjectSection    = regexp.MustCompile(`(?i)^([0-9a-f]{4})$`)
	edsSubEntrySection  = regexp.MustCompile(`(?i)^([0-9a-f]{4})sub([0-9a-f]+)$`)
	edsNodeIDExpression = regexp.MustCompile(`(?i)\$nodeid`)
)

// DictionaryAddress identifies one entry of the object dictionary. Without
// a subindex it addresses the whole object.
type DictionaryAddress struct {
	Index       uint16
	SubIndex    uint8
	HasSubIndex bool
}

// Address returns the address of a whole object.
func Address(index uint16) DictionaryAddress {
	return DictionaryAddress{Index: index}
}

// SubAddress returns the address of one element of an object.
func SubAddress(index uint16, subIndex uint8) DictionaryAddress {
	return DictionaryAddress{Index: index, SubIndex: subIndex, HasSubIndex: true}
}

func (a DictionaryAddress) String() string {
	if a.HasSubIndex {
		return fmt.Sprintf("0x%04xsub%d", a.Index, a.SubIndex)
	}
	return fmt.Sprintf("0x%04x", a.Index)
}

// DictionaryEntryMeta is the metadata the codec needs for one entry.
type DictionaryEntryMeta struct {
	DataType DataType
}

// DictionaryEntry is a single variable of the object dictionary.
type DictionaryEntry struct {
	Name         string
	Index        uint16
	SubIndex     uint8
	DataType     DataType
	AccessType   string
	DefaultValue string
}

// Meta returns the codec metadata of the entry.
func (e *DictionaryEntry) Meta() DictionaryEntryMeta {
	return DictionaryEntryMeta{DataType: e.DataType}
}

// DictionaryObject is an object at one index: either a single variable or
// an array/record of sub entries.
type DictionaryObject struct {
	Index      uint16
	Name       string
	ObjectType uint8
	Variable   *DictionaryEntry
	SubEntries map[uint8]*DictionaryEntry
}

// IsCompound reports whether the object holds sub entries.
func (o *DictionaryObject) IsCompound() bool {
	return o.ObjectType == ObjectTypeArray || o.ObjectType == ObjectTypeRecord
}

// ObjectDictionary is a read-only view of a device description.
type ObjectDictionary struct {
	objects map[uint16]*DictionaryObject
}

func NewObjectDictionary() *ObjectDictionary {
	return &ObjectDictionary{objects: map[uint16]*DictionaryObject{}}
}

// DefaultDictionary returns the built-in communication profile dictionary.
func DefaultDictionary() (*ObjectDictionary, error) {
	return LoadEDS(ds301EDS, 0)
}

// LoadEDS parses an electronic data sheet. Source is a file name or the
// raw file content. $NODEID expressions in default values are resolved
// against nodeID.
func LoadEDS(source any, nodeID int) (*ObjectDictionary, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{AllowBooleanKeys: true}, source)
	if err != nil {
		return nil, fmt.Errorf("load eds: %w", err)
	}

	od := NewObjectDictionary()
	for _, sec := range cfg.Sections() {
		m := edsObjectSection.FindStringSubmatch(sec.Name())
		if m == nil {
			continue
		}
		index, _ := strconv.ParseUint(m[1], 16, 16)

		objectType, err := parseEDSUint(sec.Key("ObjectType").MustString("0x7"), 8)
		if err != nil {
			return nil, fmt.Errorf("eds section [%s] ObjectType: %w", sec.Name(), err)
		}

		obj := &DictionaryObject{
			Index:      uint16(index),
			Name:       sec.Key("ParameterName").String(),
			ObjectType: uint8(objectType),
		}
		if obj.IsCompound() {
			obj.SubEntries = map[uint8]*DictionaryEntry{}
		} else {
			entry, err := parseEDSEntry(sec, obj.Index, 0, nodeID)
			if err != nil {
				return nil, err
			}
			obj.Variable = entry
		}
		od.Add(obj)
	}

	for _, sec := range cfg.Sections() {
		m := edsSubEntrySection.FindStringSubmatch(sec.Name())
		if m == nil {
			continue
		}
		index, _ := strconv.ParseUint(m[1], 16, 16)
		subIndex, err := strconv.ParseUint(m[2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("eds section [%s]: %w", sec.Name(), err)
		}

		obj, ok := od.objects[uint16(index)]
		if !ok || !obj.IsCompound() {
			return nil, fmt.Errorf("eds section [%s]: no compound object 0x%04x", sec.Name(), index)
		}
		entry, err := parseEDSEntry(sec, obj.Index, uint8(subIndex), nodeID)
		if err != nil {
			return nil, err
		}
		obj.SubEntries[entry.SubIndex] = entry
	}

	return od, nil
}

func parseEDSEntry(sec *ini.Section, index uint16, subIndex uint8, nodeID int) (*DictionaryEntry, error) {
	dataType, err := parseEDSUint(sec.Key("DataType").MustString("0x0007"), 16)
	if err != nil {
		return nil, fmt.Errorf("eds section [%s] DataType: %w", sec.Name(), err)
	}

	defaultValue := resolveNodeID(sec.Key("DefaultValue").String(), nodeID)

	return &DictionaryEntry{
		Name:         sec.Key("ParameterName").String(),
		Index:        index,
		SubIndex:     subIndex,
		DataType:     DataType(dataType),
		AccessType:   strings.ToLower(sec.Key("AccessType").String()),
		DefaultValue: defaultValue,
	}, nil
}

// resolveNodeID substitutes $NODEID in an EDS value. Sums such as
// $NODEID+0x180 are folded into a single hex literal.
func resolveNodeID(raw string, nodeID int) string {
	if !edsNodeIDExpression.MatchString(raw) {
		return raw
	}

	var sum uint64
	for _, term := range strings.Split(raw, "+") {
		term = strings.TrimSpace(term)
		if edsNodeIDExpression.MatchString(term) && len(term) == len("$NODEID") {
			sum += uint64(nodeID)
			continue
		}
		v, err := strconv.ParseUint(term, 0, 64)
		if err != nil {
			return edsNodeIDExpression.ReplaceAllString(raw, strconv.Itoa(nodeID))
		}
		sum += v
	}
	return fmt.Sprintf("0x%X", sum)
}

func parseEDSUint(raw string, bitSize int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(raw), 0, bitSize)
}

// Add registers obj, replacing any object at the same index.
func (od *ObjectDictionary) Add(obj *DictionaryObject) {
	od.objects[obj.Index] = obj
}

// Object returns the object at index, or nil.
func (od *ObjectDictionary) Object(index uint16) *DictionaryObject {
	return od.objects[index]
}

// FindName gets an entry by its parameter name, or nil.
func (od *ObjectDictionary) FindName(name string) *DictionaryEntry {
	for _, obj := range od.objects {
		if obj.Variable != nil && obj.Variable.Name == name {
			return obj.Variable
		}
		for _, entry := range obj.SubEntries {
			if entry.Name == name {
				return entry
			}
		}
	}
	return nil
}

// Lookup resolves addr to a single variable. Arrays expose any subindex
// above zero through the layout of their first element.
func (od *ObjectDictionary) Lookup(addr DictionaryAddress) (*DictionaryEntry, error) {
	obj, ok := od.objects[addr.Index]
	if !ok {
		return nil, &AddressError{Address: addr, Reason: "no such object"}
	}

	if !obj.IsCompound() {
		if addr.HasSubIndex && addr.SubIndex != 0 {
			return nil, &AddressError{Address: addr, Reason: "object has no sub entries"}
		}
		return obj.Variable, nil
	}

	if !addr.HasSubIndex {
		return nil, &AddressError{Address: addr, Reason: "compound object, subindex required"}
	}
	if entry, ok := obj.SubEntries[addr.SubIndex]; ok {
		return entry, nil
	}
	if template, ok := obj.SubEntries[1]; ok && obj.ObjectType == ObjectTypeArray && addr.SubIndex > 0 {
		entry := *template
		entry.SubIndex = addr.SubIndex
		entry.Name = fmt.Sprintf("%s_%d", obj.Name, addr.SubIndex)
		return &entry, nil
	}
	return nil, &AddressError{Address: addr, Reason: "no such sub entry"}
}
