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

package spoolscale

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-spoolscale/scale"
	"github.com/ZaparooProject/go-spoolscale/tag"
)

// Controller errors
var (
	ErrSensorNotReady     = errors.New("sensor not ready")
	ErrTareFailed         = errors.New("tare failed")
	ErrCalibrationFailed  = errors.New("calibration failed")
	ErrParseFailed        = errors.New("failed to parse command")
	ErrInvalidKnownWeight = errors.New("known weight must be positive")
)

// ErrorKind classifies failures that reach the Error mode or the logs.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindSensorNotReady
	KindTareFailed
	KindTagWriteFailed
	KindTagAuthFailed
	KindBlockReadFailed
	KindBlockWriteFailed
	KindParseFailed
	KindMalformedIdentifier
)

func (k ErrorKind) String() string {
	switch k {
	case KindSensorNotReady:
		return "SensorNotReady"
	case KindTareFailed:
		return "TareFailed"
	case KindTagWriteFailed:
		return "TagWriteFailed"
	case KindTagAuthFailed:
		return "TagAuthFailed"
	case KindBlockReadFailed:
		return "BlockReadFailed"
	case KindBlockWriteFailed:
		return "BlockWriteFailed"
	case KindParseFailed:
		return "ParseFailed"
	case KindMalformedIdentifier:
		return "MalformedIdentifier"
	default:
		return "Unknown"
	}
}

// kindOrder is checked first to last. Wrapping errors come before the
// causes they usually carry.
var kindOrder = []struct {
	err  error
	kind ErrorKind
}{
	{ErrParseFailed, KindParseFailed},
	{tag.ErrMalformedIdentifier, KindMalformedIdentifier},
	{tag.ErrTagWriteFailed, KindTagWriteFailed},
	{tag.ErrTagAuthFailed, KindTagAuthFailed},
	{tag.ErrBlockReadFailed, KindBlockReadFailed},
	{tag.ErrBlockWriteFailed, KindBlockWriteFailed},
	{ErrTareFailed, KindTareFailed},
	{ErrSensorNotReady, KindSensorNotReady},
	{scale.ErrNotReady, KindSensorNotReady},
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Fault is what the Error mode shows: the failing module and an operator
// message. Err keeps the cause for logs.
type Fault struct {
	Err     error
	Module  string
	Message string
}

func (f Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Module, f.Message)
	}
	return fmt.Sprintf("%s: %s: %v", f.Module, f.Message, f.Err)
}

func (f Fault) Unwrap() error {
	return f.Err
}

// Kind classifies the cause of the fault.
func (f Fault) Kind() ErrorKind {
	return KindOf(f.Err)
}
