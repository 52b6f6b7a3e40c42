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

// Package virtualtag simulates MIFARE Classic media behind the tag.Reader
// interface, with fault injection for tests.
package virtualtag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ZaparooProject/go-spoolscale/tag"
)

// Common UIDs for testing
var (
	TestMIFARE1KUID   = []byte{0x12, 0x34, 0x56, 0x78}
	TestMIFARE4KUID   = []byte{0xAB, 0xCD, 0xEF, 0x01}
	TestMIFAREMiniUID = []byte{0xC0, 0xFF, 0xEE, 0x01}
	TestNTAG213UID    = []byte{0x04, 0xAB, 0xCD, 0xEF, 0x12, 0x34, 0x56}
)

// Errors returned by the simulated medium
var (
	ErrNotPresent      = errors.New("tag not present")
	ErrNotSelected     = errors.New("tag not selected")
	ErrAuthRequired    = errors.New("sector not authenticated")
	ErrWrongKey        = errors.New("authentication key mismatch")
	ErrReadOnlyBlock   = errors.New("block is read only")
	ErrInjectedFault   = errors.New("injected fault")
	ErrBlockOutOfRange = errors.New("block out of range")
)

// Tag is an in-memory MIFARE Classic medium. It implements tag.Reader as if
// a reader with exactly this medium in its field were attached.
type Tag struct {
	failAuth   map[int]bool
	failRead   map[uint8]bool
	failWrite  map[uint8]bool
	writes     map[uint8]int
	UID        []byte
	Memory     [][]byte
	mu         sync.Mutex
	authSector int
	halts      int
	detects    int
	authKey    tag.KeyType
	SAK        byte
	Present    bool
	selected   bool
}

// NewMIFARE1K creates a blank 1K medium with transport keys in every trailer.
func NewMIFARE1K(uid []byte) *Tag {
	if uid == nil {
		uid = TestMIFARE1KUID
	}
	return newClassic(uid, 0x08, 64)
}

// NewMIFARE4K creates a blank 4K medium.
func NewMIFARE4K(uid []byte) *Tag {
	if uid == nil {
		uid = TestMIFARE4KUID
	}
	return newClassic(uid, 0x18, 256)
}

// NewMIFAREMini creates a blank MINI medium.
func NewMIFAREMini(uid []byte) *Tag {
	if uid == nil {
		uid = TestMIFAREMiniUID
	}
	return newClassic(uid, 0x09, 20)
}

// NewNTAG213 creates a medium the store must refuse.
func NewNTAG213(uid []byte) *Tag {
	if uid == nil {
		uid = TestNTAG213UID
	}
	return newClassic(uid, 0x00, 45)
}

func newClassic(uid []byte, sak byte, blocks int) *Tag {
	t := &Tag{
		UID:        uid,
		SAK:        sak,
		Memory:     make([][]byte, blocks),
		Present:    true,
		authSector: -1,
		failAuth:   make(map[int]bool),
		failRead:   make(map[uint8]bool),
		failWrite:  make(map[uint8]bool),
		writes:     make(map[uint8]int),
	}
	for i := range t.Memory {
		t.Memory[i] = make([]byte, tag.BlockSize)
	}

	// Manufacturer block: UID, BCC, SAK
	copy(t.Memory[0], uid)
	t.Memory[0][5] = sak

	for i := 0; i < blocks; i++ {
		if isTrailer(uint8(i)) {
			t.setTrailer(uint8(i), tag.DefaultKey, tag.DefaultKey)
		}
	}
	return t
}

func isTrailer(block uint8) bool {
	return tag.TrailerBlock(block) == block
}

func (t *Tag) setTrailer(block uint8, a, b tag.Key) {
	trailer := make([]byte, 0, tag.BlockSize)
	trailer = append(trailer, a[:]...)
	trailer = append(trailer, 0xFF, 0x07, 0x80, 0x69)
	trailer = append(trailer, b[:]...)
	t.Memory[block] = trailer
}

// SetKeys provisions the trailer of every sector with keys.
func (t *Tag) SetKeys(keys tag.Keys) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.Memory {
		if isTrailer(uint8(i)) {
			t.setTrailer(uint8(i), keys.A, keys.B)
		}
	}
}

// SetBlock stores data directly, bypassing authentication.
func (t *Tag) SetBlock(block uint8, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	buf := make([]byte, tag.BlockSize)
	copy(buf, data)
	t.Memory[block] = buf
}

// Block returns a copy of a block, bypassing authentication.
func (t *Tag) Block(block uint8) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return bytes.Clone(t.Memory[block])
}

// FailAuth makes authentication against sector fail.
func (t *Tag) FailAuth(sector int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failAuth[sector] = true
}

// FailRead makes reads of block fail.
func (t *Tag) FailRead(block uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failRead[block] = true
}

// FailWrite makes writes of block fail.
func (t *Tag) FailWrite(block uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failWrite[block] = true
}

// Remove takes the medium out of the field.
func (t *Tag) Remove() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Present = false
	t.selected = false
	t.authSector = -1
}

// Place puts the medium back into the field.
func (t *Tag) Place() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Present = true
}

// Halts returns how often the medium was halted.
func (t *Tag) Halts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.halts
}

// Detects returns how often the medium was selected.
func (t *Tag) Detects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.detects
}

// Writes returns how often block was written successfully.
func (t *Tag) Writes(block uint8) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes[block]
}

// Selected reports whether a session is currently open on the medium.
func (t *Tag) Selected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected
}

// Detect implements tag.Reader.
func (t *Tag) Detect(ctx context.Context) (*tag.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.Present {
		return nil, tag.ErrNoTag
	}
	t.selected = true
	t.authSector = -1
	t.detects++
	return &tag.Target{UID: bytes.Clone(t.UID), SAK: t.SAK}, nil
}

// Authenticate implements tag.Reader.
func (t *Tag) Authenticate(_ context.Context, block uint8, keyType tag.KeyType, key tag.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkSelected(block); err != nil {
		return err
	}
	sector := tag.SectorOf(block)
	t.authSector = -1
	if t.failAuth[sector] {
		return fmt.Errorf("sector %d: %w", sector, ErrInjectedFault)
	}

	trailer := t.Memory[tag.TrailerBlock(block)]
	want := trailer[:tag.KeySize]
	if keyType == tag.KeyB {
		want = trailer[10:16]
	}
	if !bytes.Equal(want, key[:]) {
		return fmt.Errorf("sector %d key %s: %w", sector, keyType, ErrWrongKey)
	}

	t.authSector = sector
	t.authKey = keyType
	return nil
}

// ReadBlock implements tag.Reader.
func (t *Tag) ReadBlock(_ context.Context, block uint8) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkAuth(block); err != nil {
		return nil, err
	}
	if t.failRead[block] {
		t.authSector = -1
		return nil, fmt.Errorf("block %d: %w", block, ErrInjectedFault)
	}
	return bytes.Clone(t.Memory[block]), nil
}

// WriteBlock implements tag.Reader. Data blocks require key B.
func (t *Tag) WriteBlock(_ context.Context, block uint8, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkAuth(block); err != nil {
		return err
	}
	if block == 0 || isTrailer(block) || t.authKey != tag.KeyB {
		return fmt.Errorf("block %d: %w", block, ErrReadOnlyBlock)
	}
	if len(data) != tag.BlockSize {
		return fmt.Errorf("invalid block size: expected %d, got %d", tag.BlockSize, len(data))
	}
	if t.failWrite[block] {
		t.authSector = -1
		return fmt.Errorf("block %d: %w", block, ErrInjectedFault)
	}
	t.Memory[block] = bytes.Clone(data)
	t.writes[block]++
	return nil
}

// Halt implements tag.Reader.
func (t *Tag) Halt(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selected = false
	t.authSector = -1
	t.halts++
	return nil
}

func (t *Tag) checkSelected(block uint8) error {
	if !t.Present {
		return ErrNotPresent
	}
	if !t.selected {
		return ErrNotSelected
	}
	if int(block) >= len(t.Memory) {
		return fmt.Errorf("block %d: %w", block, ErrBlockOutOfRange)
	}
	return nil
}

func (t *Tag) checkAuth(block uint8) error {
	if err := t.checkSelected(block); err != nil {
		return err
	}
	if t.authSector != tag.SectorOf(block) {
		return fmt.Errorf("block %d: %w", block, ErrAuthRequired)
	}
	return nil
}

var _ tag.Reader = (*Tag)(nil)
