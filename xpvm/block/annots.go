package block

import "strings"

// Annotation bits of a block header.
const (
	Unknowable  uint64 = 1 << 0
	Instruction uint64 = 1 << 1 // executable
	Owned       uint64 = 1 << 2 // exclusively held by Owner
	Volatile    uint64 = 1 << 3 // shared, readable and writable by any processor
	Chained     uint64 = 1 << 4 // ownership follows the chain target

	Private  uint64 = 1 << 56 // only the allocating processor may touch it
	ReadOnly uint64 = 1 << 57 // loader-provided tables
)

// TraitMask covers the bits programs may add or drop with atraits/dtraits:
// VOLATILE plus the reserved trait categories in bits 8..55.
const TraitMask uint64 = Volatile | 0x00ffffffffffff00

var annotNames = []struct {
	bit  uint64
	name string
}{
	{Unknowable, "UNKNOWABLE"},
	{Instruction, "INSTRUCTION"},
	{Owned, "OWNED"},
	{Volatile, "VOLATILE"},
	{Chained, "CHAINED"},
	{Private, "PRIVATE"},
	{ReadOnly, "READONLY"},
}

// AnnotString renders an annotation mask as "INSTRUCTION|VOLATILE".
func AnnotString(annots uint64) string {
	var parts []string
	rest := annots
	for _, a := range annotNames {
		if annots&a.bit != 0 {
			parts = append(parts, a.name)
			rest &^= a.bit
		}
	}
	if rest != 0 {
		parts = append(parts, "TRAITS")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "|")
}
