// Package rlp implements canonical Recursive Length Prefix encoding over a
// tree whose leaves are byte strings, the wire format the transaction
// builder uses for both the unsigned signing payload and the final signed
// transaction bytes.
package rlp

import "math/big"

// Item is a node in an RLP tree: either a byte string or an ordered list
// of further Items. Build one with String or Uint (byte strings) or List.
type Item struct {
	bytes  []byte
	list   []Item
	isList bool
}

// String wraps a byte string as a leaf RLP item.
func String(b []byte) Item {
	return Item{bytes: b}
}

// Uint wraps a non-negative integer as a leaf RLP item, using the
// canonical minimal big-endian encoding (zero encodes as the empty
// string).
func Uint(n *big.Int) Item {
	if n == nil || n.Sign() == 0 {
		return Item{bytes: []byte{}}
	}
	return Item{bytes: n.Bytes()}
}

// List wraps a sequence of items as an RLP list.
func List(items ...Item) Item {
	return Item{list: items, isList: true}
}

// Encode serializes item into canonical RLP bytes.
func Encode(item Item) []byte {
	if item.isList {
		var payload []byte
		for _, child := range item.list {
			payload = append(payload, Encode(child)...)
		}
		return append(lengthPrefix(0xc0, 0xf7, len(payload)), payload...)
	}
	return encodeString(item.bytes)
}

func encodeString(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return []byte{b[0]}
	}
	return append(lengthPrefix(0x80, 0xb7, len(b)), b...)
}

// lengthPrefix builds the RLP length-prefix bytes for a string (base
// 0x80, long-form base 0xb7) or list (base 0xc0, long-form base 0xf7).
func lengthPrefix(shortBase, longBase byte, n int) []byte {
	if n <= 55 {
		return []byte{shortBase + byte(n)}
	}

	lenBytes := minimalBigEndian(uint64(n))
	prefix := make([]byte, 0, 1+len(lenBytes))
	prefix = append(prefix, longBase+byte(len(lenBytes)))
	prefix = append(prefix, lenBytes...)
	return prefix
}

func minimalBigEndian(n uint64) []byte {
	if n == 0 {
		return []byte{0}
	}
	var buf [8]byte
	i := 8
	for n > 0 {
		i--
		buf[i] = byte(n)
		n >>= 8
	}
	return buf[i:]
}
