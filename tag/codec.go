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
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// BlockSize is the size of a MIFARE Classic data block.
const BlockSize = 16

// Block map
const (
	BlockSpoolID      uint8 = 1
	BlockWeight       uint8 = 2
	BlockManufacturer uint8 = 4
	BlockMaterial     uint8 = 5
	BlockColor        uint8 = 6
	BlockName1        uint8 = 8
	BlockName2        uint8 = 9
	BlockName3        uint8 = 10
	BlockTimestamp    uint8 = 12
)

// NameSize is the capacity of the spool name across its three blocks.
const NameSize = 3 * BlockSize

// numericPad fills bytes 4..15 of numeric blocks.
const numericPad = 0xFF

var nameBlocks = [3]uint8{BlockName1, BlockName2, BlockName3}

// Block is one 16 byte payload at a fixed index.
type Block struct {
	Data  [BlockSize]byte
	Index uint8
}

// Encode maps a record onto its blocks, ordered by index. Absent optional
// fields produce no block. Text longer than its capacity is cut at the last
// whole rune that fits.
func Encode(r Record) ([]Block, error) {
	var blocks []Block

	if r.SpoolID != "" {
		b, err := encodeIdentifier(r.SpoolID)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, Block{Index: BlockSpoolID, Data: b})
	}
	if r.Weight != nil {
		blocks = append(blocks, Block{Index: BlockWeight, Data: encodeUint32(*r.Weight)})
	}
	if r.Manufacturer != nil {
		blocks = append(blocks, Block{Index: BlockManufacturer, Data: encodeText(*r.Manufacturer)})
	}
	if r.Material != nil {
		blocks = append(blocks, Block{Index: BlockMaterial, Data: encodeText(*r.Material)})
	}
	if r.Color != nil {
		blocks = append(blocks, Block{Index: BlockColor, Data: encodeText(*r.Color)})
	}
	if r.Name != nil {
		for i, chunk := range splitName(*r.Name) {
			blocks = append(blocks, Block{Index: nameBlocks[i], Data: chunk})
		}
	}
	if r.Timestamp != nil {
		blocks = append(blocks, Block{Index: BlockTimestamp, Data: encodeUint32(*r.Timestamp)})
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Index < blocks[j].Index })
	return blocks, nil
}

// Decode rebuilds a record from whatever blocks are available. A field whose
// blocks are missing stays absent; decoding never fails.
func Decode(blocks []Block) Record {
	byIndex := make(map[uint8][BlockSize]byte, len(blocks))
	for _, b := range blocks {
		byIndex[b.Index] = b.Data
	}

	var r Record
	if b, ok := byIndex[BlockSpoolID]; ok {
		r.SpoolID = decodeIdentifier(b)
	}
	if b, ok := byIndex[BlockWeight]; ok {
		r.Weight = Ptr(decodeUint32(b))
	}
	if b, ok := byIndex[BlockManufacturer]; ok {
		r.Manufacturer = Ptr(decodeText(b))
	}
	if b, ok := byIndex[BlockMaterial]; ok {
		r.Material = Ptr(decodeText(b))
	}
	if b, ok := byIndex[BlockColor]; ok {
		r.Color = Ptr(decodeText(b))
	}

	var name strings.Builder
	nameSeen := false
	for _, idx := range nameBlocks {
		if b, ok := byIndex[idx]; ok {
			nameSeen = true
			name.WriteString(decodeText(b))
		}
	}
	if nameSeen {
		r.Name = Ptr(name.String())
	}

	if b, ok := byIndex[BlockTimestamp]; ok {
		r.Timestamp = Ptr(decodeUint32(b))
	}
	return r
}

// NormalizeIdentifier strips separators and validates the remaining hex
// digits, returning the 16 identifier bytes. The nil UUID is refused: it is
// indistinguishable from a blank identifier block.
func NormalizeIdentifier(id string) ([16]byte, error) {
	var out [16]byte
	digits := strings.ReplaceAll(id, "-", "")
	if len(digits) != 32 {
		return out, fmt.Errorf("%w: %q has %d hex digits, want 32", ErrMalformedIdentifier, id, len(digits))
	}
	if _, err := hex.Decode(out[:], []byte(digits)); err != nil {
		return out, fmt.Errorf("%w: %q: %w", ErrMalformedIdentifier, id, err)
	}
	if uuid.UUID(out) == uuid.Nil {
		return out, fmt.Errorf("%w: nil identifier", ErrMalformedIdentifier)
	}
	return out, nil
}

func encodeIdentifier(id string) ([BlockSize]byte, error) {
	raw, err := NormalizeIdentifier(id)
	if err != nil {
		return [BlockSize]byte{}, err
	}
	return raw, nil
}

func decodeIdentifier(b [BlockSize]byte) string {
	return uuid.UUID(b).String()
}

func encodeUint32(v uint32) [BlockSize]byte {
	var b [BlockSize]byte
	binary.BigEndian.PutUint32(b[:4], v)
	for i := 4; i < BlockSize; i++ {
		b[i] = numericPad
	}
	return b
}

func decodeUint32(b [BlockSize]byte) uint32 {
	return binary.BigEndian.Uint32(b[:4])
}

func encodeText(s string) [BlockSize]byte {
	var b [BlockSize]byte
	copy(b[:], truncate(s, BlockSize))
	return b
}

func decodeText(b [BlockSize]byte) string {
	if i := bytes.IndexByte(b[:], 0); i >= 0 {
		return string(b[:i])
	}
	return string(b[:])
}

// splitName cuts the name into three zero padded 16 byte chunks.
func splitName(name string) [3][BlockSize]byte {
	var chunks [3][BlockSize]byte
	raw := []byte(truncate(name, NameSize))
	for i := range chunks {
		start := i * BlockSize
		if start >= len(raw) {
			break
		}
		copy(chunks[i][:], raw[start:])
	}
	return chunks
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
