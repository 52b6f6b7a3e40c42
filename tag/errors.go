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
	"errors"
	"fmt"
)

// Session errors
var (
	ErrNoTag             = errors.New("no tag present")
	ErrNoSession         = errors.New("no open tag session")
	ErrNoTagData         = errors.New("no tag data available")
	ErrMissingIdentifier = errors.New("spool id is required")
)

// Block level error kinds
var (
	ErrMalformedIdentifier = errors.New("malformed spool identifier")
	ErrTagAuthFailed       = errors.New("tag authentication failed")
	ErrBlockReadFailed     = errors.New("block read failed")
	ErrBlockWriteFailed    = errors.New("block write failed")
	ErrTagWriteFailed      = errors.New("tag write failed")
)

// BlockError describes a failed operation on a single block. It matches both
// its kind sentinel and the underlying driver error with errors.Is.
type BlockError struct {
	Kind  error
	Err   error
	Op    string
	Block uint8
}

func (e *BlockError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s block %d: %v", e.Op, e.Block, e.Kind)
	}
	return fmt.Sprintf("%s block %d: %v: %v", e.Op, e.Block, e.Kind, e.Err)
}

func (e *BlockError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newBlockError(op string, block uint8, kind, err error) *BlockError {
	return &BlockError{Op: op, Block: block, Kind: kind, Err: err}
}
