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

package pn532

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ZaparooProject/go-spoolscale/tag"
)

// MIFARE Classic commands relayed through InDataExchange
const (
	mifareCmdAuth  = 0x60 // +1 for Key B
	mifareCmdRead  = 0x30
	mifareCmdWrite = 0xA0

	mifareBlockSize         = 16
	mifareManufacturerBlock = 0
)

var _ tag.Reader = (*Device)(nil)

// Detect lists one ISO14443A target at 106 kbps and selects it. An empty
// field yields tag.ErrNoTag.
func (d *Device) Detect(ctx context.Context) (*tag.Target, error) {
	resp, err := d.command(ctx, cmdInListPassiveTarget, []byte{0x01, 0x00})
	if err != nil {
		return nil, fmt.Errorf("failed to detect tag: %w", err)
	}

	// NbTg, Tg, ATQA (2), SAK, NFCIDLength, NFCID...
	if len(resp) == 0 || resp[0] == 0 {
		d.setTarget(nil)
		return nil, tag.ErrNoTag
	}
	if len(resp) < 6 {
		return nil, fmt.Errorf("%w: target data too short: %d bytes", ErrInvalidResponse, len(resp))
	}
	uidLen := int(resp[5])
	if len(resp) < 6+uidLen {
		return nil, fmt.Errorf("%w: UID length %d exceeds response", ErrInvalidResponse, uidLen)
	}

	sak := resp[4]
	uid := bytes.Clone(resp[6 : 6+uidLen])
	d.setTarget(&selectedTarget{number: resp[1], uid: uid})
	d.logger.Debug("target selected", "uid", fmt.Sprintf("%X", uid), "sak", fmt.Sprintf("%02X", sak))

	return &tag.Target{Type: tag.CardTypeFromSAK(sak), UID: bytes.Clone(uid), SAK: sak}, nil
}

// Authenticate opens a crypto session for the sector owning block.
func (d *Device) Authenticate(ctx context.Context, block uint8, keyType tag.KeyType, key tag.Key) error {
	uid, err := d.targetUID()
	if err != nil {
		return err
	}
	if len(uid) < 4 {
		return fmt.Errorf("%w: UID too short for authentication", ErrInvalidParameter)
	}

	// Key first, then the last four UID bytes (cascade level 2 tags use the
	// trailing part of their seven byte UID).
	cmd := make([]byte, 0, 12)
	cmd = append(cmd, mifareCmdAuth+byte(keyType), block)
	cmd = append(cmd, key[:]...)
	cmd = append(cmd, uid[len(uid)-4:]...)

	if _, err := d.dataExchange(ctx, cmd); err != nil {
		return fmt.Errorf("authentication of block %d with key %s failed: %w", block, keyType, err)
	}
	return nil
}

// ReadBlock reads a 16 byte block from the authenticated sector.
func (d *Device) ReadBlock(ctx context.Context, block uint8) ([]byte, error) {
	data, err := d.dataExchange(ctx, []byte{mifareCmdRead, block})
	if err != nil {
		return nil, fmt.Errorf("failed to read block %d: %w", block, err)
	}

	// MIFARE Classic returns 16 bytes on read
	if len(data) < mifareBlockSize {
		return nil, fmt.Errorf("%w: read returned %d bytes", ErrInvalidResponse, len(data))
	}
	return data[:mifareBlockSize], nil
}

// WriteBlock writes a 16 byte block to the authenticated sector.
func (d *Device) WriteBlock(ctx context.Context, block uint8, data []byte) error {
	if len(data) != mifareBlockSize {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidBlockSize, mifareBlockSize, len(data))
	}
	if block == mifareManufacturerBlock {
		return ErrManufacturerBlock
	}

	cmd := make([]byte, 0, 2+mifareBlockSize)
	cmd = append(cmd, mifareCmdWrite, block)
	cmd = append(cmd, data...)

	if _, err := d.dataExchange(ctx, cmd); err != nil {
		return fmt.Errorf("failed to write block %d: %w", block, err)
	}
	return nil
}

// Halt releases the selected target, which ends its crypto session. It is
// a no-op without a target.
func (d *Device) Halt(ctx context.Context) error {
	d.mu.Lock()
	target := d.target
	d.target = nil
	d.mu.Unlock()
	if target == nil {
		return nil
	}

	resp, err := d.command(ctx, cmdInRelease, []byte{target.number})
	if err != nil {
		return fmt.Errorf("failed to release target: %w", err)
	}
	if len(resp) > 0 && resp[0]&0x3F != 0 {
		return fmt.Errorf("failed to release target: %w", &DataExchangeError{Status: resp[0] & 0x3F})
	}
	return nil
}

func (d *Device) setTarget(t *selectedTarget) {
	d.mu.Lock()
	d.target = t
	d.mu.Unlock()
}

func (d *Device) targetUID() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.target == nil {
		return nil, ErrNoTarget
	}
	return d.target.uid, nil
}
