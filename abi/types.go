package abi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chapool/usdc-wallet/walleterr"
)

// Type is the parsed form of a Solidity ABI type name: uintN/intN,
// bytesN, the dynamic bytes/string, bool, address, ufixedNxM/fixedNxM,
// and nestable arrays of any of the above.
type Type struct {
	// Name is the base scalar type name ("uint", "int", "bytes",
	// "string", "bool", "address", "ufixed", "fixed"), with array
	// brackets stripped.
	Name string
	// RawName is the original type string as given, including array
	// brackets.
	RawName string
	// Size is the bit width for uint/int/ufixed/fixed, or the byte
	// width for bytesN. Zero for types with no size component.
	Size int
	// FixedM is the fractional-bits component of ufixedNxM/fixedNxM.
	FixedM int
	// IsArray reports whether RawName ends in "[...]" or "[]".
	IsArray bool
	// ArrayLen is the fixed array length, or -1 for a dynamic array.
	ArrayLen int
	// SubArray is the element type when IsArray is true.
	SubArray *Type
}

var arraySuffix = regexp.MustCompile(`\[(\d*)\]$`)

// ParseType parses a single Solidity ABI type name.
func ParseType(raw string) (*Type, error) {
	if m := arraySuffix.FindStringSubmatch(raw); m != nil {
		elemRaw := raw[:len(raw)-len(m[0])]
		elem, err := ParseType(elemRaw)
		if err != nil {
			return nil, err
		}
		arrayLen := -1
		if m[1] != "" {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("abi: invalid array length in %q", raw)
			}
			arrayLen = n
		}
		return &Type{
			Name:     elem.Name,
			RawName:  raw,
			IsArray:  true,
			ArrayLen: arrayLen,
			SubArray: elem,
		}, nil
	}

	switch {
	case raw == "address":
		return &Type{Name: "address", RawName: raw, Size: 160}, nil
	case raw == "bool":
		return &Type{Name: "bool", RawName: raw, Size: 8}, nil
	case raw == "string":
		return &Type{Name: "string", RawName: raw}, nil
	case raw == "bytes":
		return &Type{Name: "bytes", RawName: raw}, nil
	case strings.HasPrefix(raw, "uint"):
		size, err := parseSize(raw, "uint")
		if err != nil {
			return nil, err
		}
		return &Type{Name: "uint", RawName: raw, Size: size}, nil
	case strings.HasPrefix(raw, "int"):
		size, err := parseSize(raw, "int")
		if err != nil {
			return nil, err
		}
		return &Type{Name: "int", RawName: raw, Size: size}, nil
	case strings.HasPrefix(raw, "bytes"):
		size, err := strconv.Atoi(raw[len("bytes"):])
		if err != nil || size < 1 || size > 32 {
			return nil, fmt.Errorf("abi: invalid bytesN type %q", raw)
		}
		return &Type{Name: "bytes", RawName: raw, Size: size}, nil
	case strings.HasPrefix(raw, "ufixed"):
		n, m, err := parseFixed(raw, "ufixed")
		if err != nil {
			return nil, err
		}
		return &Type{Name: "ufixed", RawName: raw, Size: n, FixedM: m}, nil
	case strings.HasPrefix(raw, "fixed"):
		n, m, err := parseFixed(raw, "fixed")
		if err != nil {
			return nil, err
		}
		return &Type{Name: "fixed", RawName: raw, Size: n, FixedM: m}, nil
	default:
		return nil, fmt.Errorf("abi: unsupported type %q", raw)
	}
}

func parseSize(raw, prefix string) (int, error) {
	suffix := raw[len(prefix):]
	n, err := strconv.Atoi(suffix)
	if err != nil || n <= 0 || n > 256 || n%8 != 0 {
		return 0, fmt.Errorf("abi: invalid %s width in %q", prefix, raw)
	}
	return n, nil
}

func parseFixed(raw, prefix string) (int, int, error) {
	suffix := raw[len(prefix):]
	parts := strings.SplitN(suffix, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("abi: invalid fixed type %q", raw)
	}
	n, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || n <= 0 || n > 256 || n%8 != 0 || m <= 0 || m > 80 {
		return 0, 0, fmt.Errorf("abi: invalid fixed type %q", raw)
	}
	return n, m, nil
}

// IsDynamic reports whether values of t require a tail slot (bytes,
// string, dynamic arrays, or static arrays of dynamic elements).
func (t *Type) IsDynamic() bool {
	switch {
	case t.IsArray:
		if t.ArrayLen < 0 {
			return true
		}
		return t.SubArray.IsDynamic()
	case t.Name == "bytes" && t.Size == 0:
		return true
	case t.Name == "string":
		return true
	default:
		return false
	}
}

// MemoryUsage is the number of bytes t contributes to the head region: 32
// for a static leaf, 32*ArrayLen for a static array, or 32 for a dynamic
// pointer.
func (t *Type) MemoryUsage() int {
	if !t.IsArray {
		return 32
	}
	if t.IsDynamic() {
		return 32
	}
	return 32 * t.ArrayLen * (t.SubArray.MemoryUsage() / 32)
}

func parseTypes(raws []string) ([]*Type, error) {
	types := make([]*Type, len(raws))
	for i, r := range raws {
		t, err := ParseType(r)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return types, nil
}

func widthExceeded(typeName string, detail string) error {
	return &walleterr.AbiWidthExceededError{Type: typeName, Detail: detail}
}
