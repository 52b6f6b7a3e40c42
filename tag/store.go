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
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Reader is the contactless reader driver a Store runs against. The reader
// keeps track of the selected target between Detect and Halt.
type Reader interface {
	// Detect selects a target in the field. It returns ErrNoTag when the
	// field is empty.
	Detect(ctx context.Context) (*Target, error)

	// Authenticate opens the crypto session for the sector owning block.
	Authenticate(ctx context.Context, block uint8, keyType KeyType, key Key) error

	ReadBlock(ctx context.Context, block uint8) ([]byte, error)
	WriteBlock(ctx context.Context, block uint8, data []byte) error

	// Halt halts the medium and stops the crypto session.
	Halt(ctx context.Context) error
}

// readOrder lists every block a record can occupy. The identifier comes first.
var readOrder = []uint8{
	BlockSpoolID,
	BlockWeight,
	BlockManufacturer,
	BlockMaterial,
	BlockColor,
	BlockName1,
	BlockName2,
	BlockName3,
	BlockTimestamp,
}

// SectorOf returns the sector owning block, for both the 1K and 4K layouts.
func SectorOf(block uint8) int {
	if block < 128 {
		return int(block) / 4
	}
	return 32 + (int(block)-128)/16
}

// TrailerBlock returns the trailer of the sector owning block.
func TrailerBlock(block uint8) uint8 {
	if block < 128 {
		return block/4*4 + 3
	}
	return block/16*16 + 15
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeys sets the sector keys used for reads (A) and writes (B).
func WithKeys(keys Keys) StoreOption {
	return func(s *Store) {
		s.keys = keys
	}
}

// WithLogger sets the logger used for per-block failures.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store reads and writes identity records on MIFARE Classic tags. It is
// not safe for concurrent use; one session is open at a time.
type Store struct {
	reader     Reader
	logger     *slog.Logger
	session    *Target
	keys       Keys
	authSector int
	authKey    KeyType
}

// NewStore creates a Store on top of a reader driver.
func NewStore(reader Reader, opts ...StoreOption) *Store {
	s := &Store{
		reader:     reader,
		keys:       DefaultKeys(),
		logger:     slog.Default().With("module", "tag"),
		authSector: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts a session when a supported medium with a readable serial is in
// the field. It has to be called before every batch of block operations.
func (s *Store) Open(ctx context.Context) bool {
	s.session = nil
	s.authSector = -1

	target, err := s.reader.Detect(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoTag) {
			s.logger.Debug("tag detection failed", "error", err)
		}
		return false
	}
	if target == nil || len(target.UID) == 0 {
		return false
	}
	if target.Type == "" {
		target.Type = CardTypeFromSAK(target.SAK)
	}
	if !target.Type.Supported() {
		s.logger.Debug("ignoring unsupported tag", "uid", target.UIDString(), "sak", target.SAK)
		if err := s.reader.Halt(ctx); err != nil {
			s.logger.Debug("failed to release unsupported tag", "error", err)
		}
		return false
	}

	s.session = target
	s.logger.Debug("tag found", "uid", target.UIDString(), "type", target.Type)
	return true
}

// Session returns the target of the open session, or nil.
func (s *Store) Session() *Target {
	return s.session
}

// ReadAll reads every record block of the open session. Unreadable optional
// blocks are logged and skipped; an unreadable identifier fails the read with
// ErrNoTagData. Blank (all zero) blocks count as never written.
func (s *Store) ReadAll(ctx context.Context) (Record, error) {
	if s.session == nil {
		return Record{}, ErrNoSession
	}

	id, err := s.readBlock(ctx, BlockSpoolID)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrNoTagData, err)
	}
	if isBlank(id.Data) {
		return Record{}, fmt.Errorf("%w: identifier block is blank", ErrNoTagData)
	}

	blocks := []Block{id}
	for _, idx := range readOrder[1:] {
		b, err := s.readBlock(ctx, idx)
		if err != nil {
			s.logger.Warn("skipping unreadable block", "block", idx, "error", err)
			continue
		}
		if isBlank(b.Data) {
			continue
		}
		blocks = append(blocks, b)
	}

	return Decode(blocks), nil
}

// WriteAll writes the present fields of r to the open session. A failed
// optional block is logged and skipped; a failed identifier write aborts with
// ErrTagWriteFailed.
func (s *Store) WriteAll(ctx context.Context, r Record) error {
	if s.session == nil {
		return ErrNoSession
	}
	if r.SpoolID == "" {
		return ErrMissingIdentifier
	}

	s.logTruncation(r)
	blocks, err := Encode(r)
	if err != nil {
		return err
	}

	for _, b := range blocks {
		err := s.writeBlock(ctx, b)
		if err == nil {
			continue
		}
		if b.Index == BlockSpoolID {
			return fmt.Errorf("%w: %w", ErrTagWriteFailed, err)
		}
		s.logger.Warn("skipping block after write failure", "block", b.Index, "error", err)
	}
	return nil
}

// Close halts the medium and ends the session. It is a no-op without one.
func (s *Store) Close(ctx context.Context) error {
	if s.session == nil {
		return nil
	}
	s.session = nil
	s.authSector = -1
	if err := s.reader.Halt(ctx); err != nil {
		return fmt.Errorf("failed to halt tag: %w", err)
	}
	return nil
}

// Read opens a session, reads the record and closes the session.
func (s *Store) Read(ctx context.Context) (Record, error) {
	if !s.Open(ctx) {
		return Record{}, ErrNoTag
	}
	defer s.closeQuietly(ctx)

	return s.ReadAll(ctx)
}

// Write opens a session, writes r and closes the session.
func (s *Store) Write(ctx context.Context, r Record) error {
	if !s.Open(ctx) {
		return ErrNoTag
	}
	defer s.closeQuietly(ctx)

	return s.WriteAll(ctx, r)
}

func (s *Store) closeQuietly(ctx context.Context) {
	// Halting must happen even when the caller's context is already done.
	if err := s.Close(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("failed to close tag session", "error", err)
	}
}

func (s *Store) authenticate(ctx context.Context, block uint8, keyType KeyType) error {
	sector := SectorOf(block)
	if s.authSector == sector && s.authKey == keyType {
		return nil
	}

	err := s.reader.Authenticate(ctx, TrailerBlock(block), keyType, s.keys.forType(keyType))
	if err != nil {
		s.authSector = -1
		return newBlockError("authenticate", block, ErrTagAuthFailed, err)
	}
	s.authSector = sector
	s.authKey = keyType
	return nil
}

func (s *Store) readBlock(ctx context.Context, idx uint8) (Block, error) {
	if err := s.authenticate(ctx, idx, KeyA); err != nil {
		return Block{}, err
	}

	data, err := s.reader.ReadBlock(ctx, idx)
	if err != nil {
		// a failed operation drops the card's crypto state
		s.authSector = -1
		return Block{}, newBlockError("read", idx, ErrBlockReadFailed, err)
	}
	if len(data) < BlockSize {
		return Block{}, newBlockError("read", idx, ErrBlockReadFailed,
			fmt.Errorf("short read: %d bytes", len(data)))
	}

	b := Block{Index: idx}
	copy(b.Data[:], data)
	return b, nil
}

func (s *Store) writeBlock(ctx context.Context, b Block) error {
	if err := s.authenticate(ctx, b.Index, KeyB); err != nil {
		return err
	}
	if err := s.reader.WriteBlock(ctx, b.Index, b.Data[:]); err != nil {
		s.authSector = -1
		return newBlockError("write", b.Index, ErrBlockWriteFailed, err)
	}
	return nil
}

func (s *Store) logTruncation(r Record) {
	for field, v := range map[string]*string{
		"material":     r.Material,
		"color":        r.Color,
		"manufacturer": r.Manufacturer,
	} {
		if v != nil && len(*v) > BlockSize {
			s.logger.Debug("text field truncated", "field", field, "length", len(*v), "max", BlockSize)
		}
	}
	if r.Name != nil && len(*r.Name) > NameSize {
		s.logger.Debug("text field truncated", "field", "spool_name", "length", len(*r.Name), "max", NameSize)
	}
}

func isBlank(data [BlockSize]byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
