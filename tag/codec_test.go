// go-spoolscale
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-spoolscale.
//
// go-spoolscale is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-spoolscale is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-spoolscale; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package tag

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSpoolID = "3f2a8c1e-5b7d-4e9f-a1c2-0d3e4f5a6b7c"

func blockIndexes(blocks []Block) []uint8 {
	idx := make([]uint8, 0, len(blocks))
	for _, b := range blocks {
		idx = append(idx, b.Index)
	}
	return idx
}

func TestEncode_BlockMap(t *testing.T) {
	t.Parallel()

	rec := Record{
		SpoolID:      testSpoolID,
		Weight:       Ptr(uint32(1000)),
		Material:     Ptr("PLA"),
		Color:        Ptr("Galaxy Black"),
		Manufacturer: Ptr("Prusament"),
		Name:         Ptr("Prusament PLA Galaxy Black 1kg"),
		Timestamp:    Ptr(uint32(1700000000)),
	}

	blocks, err := Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 4, 5, 6, 8, 9, 10, 12}, blockIndexes(blocks))
}

func TestEncode_OmitsAbsentFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  Record
		want []uint8
	}{
		{
			name: "identifier only",
			rec:  Record{SpoolID: testSpoolID},
			want: []uint8{BlockSpoolID},
		},
		{
			name: "weight and timestamp",
			rec:  Record{SpoolID: testSpoolID, Weight: Ptr(uint32(250)), Timestamp: Ptr(uint32(1))},
			want: []uint8{BlockSpoolID, BlockWeight, BlockTimestamp},
		},
		{
			name: "present zero values are written",
			rec:  Record{SpoolID: testSpoolID, Weight: Ptr(uint32(0)), Color: Ptr("")},
			want: []uint8{BlockSpoolID, BlockWeight, BlockColor},
		},
		{
			name: "name always spans three blocks",
			rec:  Record{SpoolID: testSpoolID, Name: Ptr("short")},
			want: []uint8{BlockSpoolID, BlockName1, BlockName2, BlockName3},
		},
		{
			name: "empty record",
			rec:  Record{},
			want: []uint8{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			blocks, err := Encode(tt.rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, blockIndexes(blocks))
		})
	}
}

func TestEncode_MalformedIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   string
	}{
		{name: "too short", id: "3f2a8c1e-5b7d-4e9f-a1c2-0d3e4f5a6b"},
		{name: "too long", id: "3f2a8c1e-5b7d-4e9f-a1c2-0d3e4f5a6b7c00"},
		{name: "not hex", id: "zz2a8c1e-5b7d-4e9f-a1c2-0d3e4f5a6b7c"},
		{name: "numeric legacy id", id: "42"},
		{name: "separators only", id: "----"},
		{name: "nil uuid", id: "00000000-0000-0000-0000-000000000000"},
		{name: "nil uuid without separators", id: "00000000000000000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Encode(Record{SpoolID: tt.id})
			require.ErrorIs(t, err, ErrMalformedIdentifier)
		})
	}
}

func TestIdentifier_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   string
		want string
	}{
		{name: "canonical", id: testSpoolID, want: testSpoolID},
		{name: "no separators", id: "3f2a8c1e5b7d4e9fa1c20d3e4f5a6b7c", want: testSpoolID},
		{name: "uppercase", id: strings.ToUpper(testSpoolID), want: testSpoolID},
		{name: "odd separators", id: "3f2a-8c1e5b7d4e9fa1c2-0d3e4f5a6b7c", want: testSpoolID},
		{name: "all ff", id: "ffffffffffffffffffffffffffffffff", want: "ffffffff-ffff-ffff-ffff-ffffffffffff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			blocks, err := Encode(Record{SpoolID: tt.id})
			require.NoError(t, err)
			require.Len(t, blocks, 1)
			assert.Equal(t, tt.want, Decode(blocks).SpoolID)
		})
	}
}

func TestUint32_RoundTripAndPadding(t *testing.T) {
	t.Parallel()

	values := []uint32{0, 1, 255, 256, 65535, 1 << 24, 1700000000, math.MaxUint32 - 1, math.MaxUint32}
	for _, v := range values {
		b := encodeUint32(v)
		assert.Equal(t, v, decodeUint32(b), "value %d", v)
		assert.Equal(t, bytes.Repeat([]byte{0xFF}, 12), b[4:], "padding for %d", v)
	}

	b := encodeUint32(0x01020304)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, b[:4])
}

func TestName_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "one chunk", input: "PLA"},
		{name: "exactly sixteen", input: "0123456789abcdef"},
		{name: "seventeen", input: "0123456789abcdefg"},
		{name: "two chunks", input: "Prusament PLA Galaxy Black"},
		{name: "exactly forty eight", input: strings.Repeat("x", 48)},
		{name: "multibyte", input: "Grün matt – 1,75mm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			blocks, err := Encode(Record{Name: Ptr(tt.input)})
			require.NoError(t, err)
			require.Len(t, blocks, 3)
			got := Decode(blocks)
			require.NotNil(t, got.Name)
			assert.Equal(t, tt.input, *got.Name)
		})
	}
}

func TestText_Truncation(t *testing.T) {
	t.Parallel()

	blocks, err := Encode(Record{Material: Ptr("PETG-CF-extra-long-material")})
	require.NoError(t, err)
	got := Decode(blocks)
	require.NotNil(t, got.Material)
	assert.Equal(t, "PETG-CF-extra-lo", *got.Material)

	blocks, err = Encode(Record{Color: Ptr("fifteen chars.ü")})
	require.NoError(t, err)
	got = Decode(blocks)
	require.NotNil(t, got.Color)
	assert.Equal(t, "fifteen chars.ü", *got.Color)

	// a rune straddling the block boundary is dropped as a whole
	blocks, err = Encode(Record{Color: Ptr("sixteen chars..ü")})
	require.NoError(t, err)
	got = Decode(blocks)
	assert.Equal(t, "sixteen chars..", *got.Color)

	long := strings.Repeat("n", 60)
	blocks, err = Encode(Record{Name: Ptr(long)})
	require.NoError(t, err)
	got = Decode(blocks)
	assert.Equal(t, long[:NameSize], *got.Name)
}

func TestText_ZeroPadding(t *testing.T) {
	t.Parallel()

	b := encodeText("ABS")
	assert.Equal(t, []byte("ABS"), b[:3])
	assert.Equal(t, make([]byte, 13), b[3:])
	assert.Equal(t, "ABS", decodeText(b))

	var full [BlockSize]byte
	copy(full[:], "0123456789abcdef")
	assert.Equal(t, "0123456789abcdef", decodeText(full))
}

func TestDecode_Partial(t *testing.T) {
	t.Parallel()

	blocks, err := Encode(Record{
		SpoolID:  testSpoolID,
		Weight:   Ptr(uint32(750)),
		Material: Ptr("PLA"),
		Name:     Ptr("Spool"),
	})
	require.NoError(t, err)

	// drop the material block as if it could not be read
	var partial []Block
	for _, b := range blocks {
		if b.Index != BlockMaterial {
			partial = append(partial, b)
		}
	}

	got := Decode(partial)
	assert.Equal(t, testSpoolID, got.SpoolID)
	require.NotNil(t, got.Weight)
	assert.Equal(t, uint32(750), *got.Weight)
	assert.Nil(t, got.Material)
	assert.Nil(t, got.Color)
	assert.Nil(t, got.Manufacturer)
	assert.Nil(t, got.Timestamp)
	require.NotNil(t, got.Name)
	assert.Equal(t, "Spool", *got.Name)

	empty := Decode(nil)
	assert.Equal(t, Record{}, empty)
}

func TestEncode_Idempotent(t *testing.T) {
	t.Parallel()

	rec := Record{SpoolID: testSpoolID, Weight: Ptr(uint32(1)), Color: Ptr("Red"), Name: Ptr("Red spool")}
	first, err := Encode(rec)
	require.NoError(t, err)
	second, err := Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRecord_FullRoundTrip(t *testing.T) {
	t.Parallel()

	rec := Record{
		SpoolID:      testSpoolID,
		Weight:       Ptr(uint32(1000)),
		Material:     Ptr("PLA"),
		Color:        Ptr("Galaxy Black"),
		Manufacturer: Ptr("Prusament"),
		Name:         Ptr("Prusament PLA Galaxy Black 1kg"),
		Timestamp:    Ptr(uint32(1700000000)),
	}

	blocks, err := Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, rec, Decode(blocks))
}

func TestSectorLayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		block   uint8
		sector  int
		trailer uint8
	}{
		{block: 1, sector: 0, trailer: 3},
		{block: 2, sector: 0, trailer: 3},
		{block: 4, sector: 1, trailer: 7},
		{block: 6, sector: 1, trailer: 7},
		{block: 8, sector: 2, trailer: 11},
		{block: 10, sector: 2, trailer: 11},
		{block: 12, sector: 3, trailer: 15},
		{block: 127, sector: 31, trailer: 127},
		{block: 128, sector: 32, trailer: 143},
		{block: 200, sector: 36, trailer: 207},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.sector, SectorOf(tt.block), "sector of %d", tt.block)
		assert.Equal(t, tt.trailer, TrailerBlock(tt.block), "trailer of %d", tt.block)
	}
}

func TestCardTypeFromSAK(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CardMini, CardTypeFromSAK(0x09))
	assert.Equal(t, Card1K, CardTypeFromSAK(0x08))
	assert.Equal(t, Card4K, CardTypeFromSAK(0x18))
	assert.Equal(t, CardUnsupported, CardTypeFromSAK(0x00))
	assert.Equal(t, CardUnsupported, CardTypeFromSAK(0x20))
	assert.False(t, CardUnsupported.Supported())
	assert.True(t, Card4K.Supported())
}
