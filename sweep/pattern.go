package sweep

// PatternKind selects how a payload is generated from its seed.
type PatternKind uint8

// Pattern kinds.
const (
	// IncrementingByte sets byte i to the low byte of seed+i.
	IncrementingByte PatternKind = iota

	// ConstantWord repeats the low 16 bits of seed as little-endian words.
	// A trailing odd byte takes the low byte of the word.
	ConstantWord
)

// String returns the pattern name.
func (k PatternKind) String() string {
	switch k {
	case IncrementingByte:
		return "inc8"
	case ConstantWord:
		return "const16"
	default:
		return "unknown"
	}
}

// PatternFor returns the pattern used for a block count: incrementing for
// odd counts and constant for even counts.
func PatternFor(blockCount uint64) PatternKind {
	if blockCount&1 == 1 {
		return IncrementingByte
	}
	return ConstantWord
}

// Fill writes the pattern selected by kind and seed over all of buf.
func Fill(buf []byte, kind PatternKind, seed uint64) {
	switch kind {
	case IncrementingByte:
		for i := range buf {
			buf[i] = byte(seed + uint64(i))
		}
	case ConstantWord:
		lo, hi := byte(seed), byte(seed>>8)
		for i := range buf {
			if i&1 == 0 {
				buf[i] = lo
			} else {
				buf[i] = hi
			}
		}
	}
}

// Expected returns a new n-byte buffer holding the pattern selected by kind
// and seed.
func Expected(kind PatternKind, seed, n uint64) []byte {
	buf := make([]byte, n)
	Fill(buf, kind, seed)
	return buf
}

// Complement fills buf with the bitwise complement of the pattern selected
// by kind and seed, so that every byte differs from what a correct read
// must return.
func Complement(buf []byte, kind PatternKind, seed uint64) {
	Fill(buf, kind, seed)
	for i := range buf {
		buf[i] = ^buf[i]
	}
}
