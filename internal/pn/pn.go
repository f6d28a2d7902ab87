// Package pn removes the pseudo-noise overlay a transmitter XORs over each
// frame for line balance.
//
// The transform is a plain exclusive-or against a fixed repeating sequence, so
// it is its own inverse: decoding twice restores the original bytes. The byte
// range and the sequence vary per mission; they live in a Variant, never in
// the algorithm.
package pn

import (
	"errors"
	"fmt"
	"sort"
)

// ErrRange is returned when a decode range does not fit the buffer.
var ErrRange = errors.New("pn: invalid byte range")

// Decode XORs buf[first:last] in place with seq, repeating seq as needed.
// The sequence is anchored at first. Bytes outside [first, last) are never
// touched. On error the buffer is left unmodified.
func Decode(buf []byte, first, last int, seq []byte) error {
	if first < 0 || last < first || last > len(buf) {
		return fmt.Errorf("%w: [%d,%d) over %d bytes", ErrRange, first, last, len(buf))
	}
	if len(seq) == 0 {
		return errors.New("pn: empty sequence")
	}

	region := buf[first:last]
	for off := 0; off < len(region); off += len(seq) {
		chunk := region[off:]
		if len(chunk) > len(seq) {
			chunk = chunk[:len(seq)]
		}
		for i := range chunk {
			chunk[i] ^= seq[i]
		}
	}
	return nil
}

// CCSDS returns n bytes of the CCSDS randomizer sequence generated by
// h(x) = x^8 + x^7 + x^5 + x^3 + 1 from an all-ones seed. The sequence has a
// period of 255 bytes and starts FF 48 0E C0 9A.
func CCSDS(n int) []byte {
	if n <= 0 {
		return nil
	}

	bits := make([]byte, n*8)
	for k := range bits {
		if k < 8 {
			bits[k] = 1
			continue
		}
		bits[k] = bits[k-1] ^ bits[k-3] ^ bits[k-5] ^ bits[k-8]
	}

	out := make([]byte, n)
	for i := range out {
		var b byte
		for j := 0; j < 8; j++ {
			b = b<<1 | bits[i*8+j]
		}
		out[i] = b
	}
	return out
}

// CCSDSPeriod is the repeat length of the CCSDS sequence in bytes.
const CCSDSPeriod = 255

// Variant fixes the decode range and sequence for one transmitter.
type Variant struct {
	// First is the offset of the first randomized byte (after the sync marker).
	First int
	// Last is the exclusive end of the randomized range.
	Last int
	// Sequence is the repeating overlay, anchored at First.
	Sequence []byte
}

// Decode applies the variant to buf.
func (v Variant) Decode(buf []byte) error {
	return Decode(buf, v.First, v.Last, v.Sequence)
}

// Validate checks that the variant describes a usable range.
func (v Variant) Validate() error {
	if v.First < 0 {
		return fmt.Errorf("first offset must be >= 0, got %d", v.First)
	}
	if v.Last <= v.First {
		return fmt.Errorf("last offset (%d) must be greater than first offset (%d)", v.Last, v.First)
	}
	if len(v.Sequence) == 0 {
		return errors.New("sequence cannot be empty")
	}
	return nil
}

// presets maps a variant name to its parameters. Offsets assume a 4-byte
// attached sync marker in front of the randomized transfer frame.
var presets = map[string]Variant{
	// 1024-byte CADU: 4-byte ASM + 1020-byte randomized VCDU.
	"ccsds": {First: 4, Last: 1024, Sequence: CCSDS(CCSDSPeriod)},
	// 892-byte transfer frame behind the ASM (Reed-Solomon interleave 4 with
	// a short frame), as flown by older EOS-era downlinks.
	"ccsds-short": {First: 4, Last: 896, Sequence: CCSDS(CCSDSPeriod)},
}

// Lookup returns the named preset.
func Lookup(name string) (Variant, bool) {
	v, ok := presets[name]
	return v, ok
}

// Names lists the preset names in sorted order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
