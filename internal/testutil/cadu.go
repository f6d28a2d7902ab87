// Package testutil builds synthetic downlink data for tests.
package testutil

import (
	"bytes"

	"github.com/dyluth/downlink/internal/pn"
)

const (
	// CADULen is the length of the CADUs built here.
	CADULen = 1024
	// HeaderOffset is where the VCDU header starts, after the sync marker.
	HeaderOffset = 4
	// IdleFHP is the first header pointer of an idle VCDU.
	IdleFHP = 0x7FE
)

// SyncMarker is the CCSDS attached sync marker.
var SyncMarker = []byte{0x1A, 0xCF, 0xFC, 0x1D}

// CADU builds an un-randomized CADU with the given VCDU header fields.
func CADU(scid uint16, vcid uint8, counter uint32, fhp uint16) []byte {
	b := make([]byte, CADULen)
	copy(b, SyncMarker)
	h := b[HeaderOffset:]
	h[0] = 0x40 | byte(scid>>2)&0x3F
	h[1] = byte(scid&0x03)<<6 | vcid&0x3F
	h[2] = byte(counter >> 16)
	h[3] = byte(counter >> 8)
	h[4] = byte(counter)
	h[6] = byte(fhp>>8) & 0x07
	h[7] = byte(fhp)
	return b
}

// Randomize applies the CCSDS randomizer to b in place, as a transmitter
// would, and returns it.
func Randomize(b []byte) []byte {
	v, _ := pn.Lookup("ccsds")
	if err := v.Decode(b); err != nil {
		panic(err)
	}
	return b
}

// IdleStream concatenates n idle CADUs for spacecraft 157 on vcid with
// consecutive counters, randomized when randomized is set.
func IdleStream(vcid uint8, n int, randomized bool) []byte {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		b := CADU(157, vcid, uint32(i), IdleFHP)
		if randomized {
			Randomize(b)
		}
		buf.Write(b)
	}
	return buf.Bytes()
}
