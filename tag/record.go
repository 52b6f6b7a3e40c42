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

// Package tag maps spool identity records onto MIFARE Classic blocks and
// drives a contactless reader through authenticated block sessions.
package tag

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Record is the identity data stored on a spool tag. Optional fields are
// nil when not present; a present zero or empty value is still written.
type Record struct {
	Weight       *uint32 `json:"spool_weight,omitempty"`
	Material     *string `json:"material,omitempty"`
	Color        *string `json:"color,omitempty"`
	Manufacturer *string `json:"manufacturer,omitempty"`
	Name         *string `json:"spool_name,omitempty"`
	Timestamp    *uint32 `json:"timestamp,omitempty"`
	// SpoolID is mandatory for writes. Decoded records carry the dashed
	// lowercase form.
	SpoolID string `json:"spool_id"`
}

// Ptr returns a pointer to v, for filling optional Record fields.
func Ptr[T any](v T) *T {
	return &v
}

// String renders the record for logs and CLI output.
func (r Record) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "spool_id=%q", r.SpoolID)
	if r.Weight != nil {
		fmt.Fprintf(&sb, " weight=%d", *r.Weight)
	}
	if r.Material != nil {
		fmt.Fprintf(&sb, " material=%q", *r.Material)
	}
	if r.Color != nil {
		fmt.Fprintf(&sb, " color=%q", *r.Color)
	}
	if r.Manufacturer != nil {
		fmt.Fprintf(&sb, " manufacturer=%q", *r.Manufacturer)
	}
	if r.Name != nil {
		fmt.Fprintf(&sb, " name=%q", *r.Name)
	}
	if r.Timestamp != nil {
		fmt.Fprintf(&sb, " timestamp=%d", *r.Timestamp)
	}
	return sb.String()
}

// CardType is the capacity class of a detected MIFARE Classic medium.
type CardType string

const (
	CardMini        CardType = "MIFARE Mini"
	Card1K          CardType = "MIFARE Classic 1K"
	Card4K          CardType = "MIFARE Classic 4K"
	CardUnsupported CardType = "unsupported"
)

// CardTypeFromSAK classifies a target by its SAK (select acknowledge) byte.
func CardTypeFromSAK(sak byte) CardType {
	switch sak {
	case 0x09:
		return CardMini
	case 0x08:
		return Card1K
	case 0x18:
		return Card4K
	default:
		return CardUnsupported
	}
}

// Supported reports whether blocks on this card type can be read and written.
func (c CardType) Supported() bool {
	return c == CardMini || c == Card1K || c == Card4K
}

// Target is a medium found in the reader field.
type Target struct {
	Type CardType
	UID  []byte
	SAK  byte
}

// UIDString returns the UID as uppercase hex.
func (t *Target) UIDString() string {
	return strings.ToUpper(hex.EncodeToString(t.UID))
}

// KeyType selects which sector trailer key authenticates an operation.
type KeyType byte

const (
	// KeyA is the read key.
	KeyA KeyType = 0x00
	// KeyB is the write key.
	KeyB KeyType = 0x01
)

func (k KeyType) String() string {
	if k == KeyB {
		return "B"
	}
	return "A"
}

// KeySize is the length of a MIFARE Classic sector key.
const KeySize = 6

// Key is a 6 byte MIFARE Classic sector key.
type Key [KeySize]byte

// DefaultKey is the transport key blank tags ship with. Both trailer keys
// are provisioned with it.
var DefaultKey = Key{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// Keys holds the read (A) and write (B) keys shared by every spool tag.
type Keys struct {
	A Key
	B Key
}

// DefaultKeys returns the shared key pair.
func DefaultKeys() Keys {
	return Keys{A: DefaultKey, B: DefaultKey}
}

func (k Keys) forType(kt KeyType) Key {
	if kt == KeyB {
		return k.B
	}
	return k.A
}
