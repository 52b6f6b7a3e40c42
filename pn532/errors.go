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
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-spoolscale/internal/frame"
)

// Transport errors
var (
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportClosed  = errors.New("transport closed")
	ErrNoACK            = errors.New("no ACK received")
	ErrFrameCorrupted   = frame.ErrFrameCorrupted
	ErrChecksumMismatch = frame.ErrChecksumMismatch
	ErrDataTooLarge     = frame.ErrDataTooLarge
	ErrDeviceNotFound   = errors.New("device not found")
)

// Protocol errors
var (
	ErrInvalidResponse   = errors.New("invalid response")
	ErrNoTarget          = errors.New("no target selected")
	ErrInvalidBlockSize  = errors.New("invalid block size")
	ErrManufacturerBlock = errors.New("cannot write to manufacturer block")
	ErrInvalidParameter  = errors.New("invalid parameter")
)

// ErrorType classifies errors for the retry logic.
type ErrorType int

const (
	// ErrorTypePermanent errors are not retried.
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors may succeed on the next attempt.
	ErrorTypeTransient
	// ErrorTypeTimeout errors are transient errors caused by a deadline.
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "permanent"
	}
}

// TransportError carries the operation and port a transport failure
// happened on.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Port, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a TransportError. Only permanent errors are
// marked as not retryable.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError creates a retryable timeout error.
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// DataExchangeError is a non-zero status returned by the PN532 for an
// InDataExchange.
type DataExchangeError struct {
	Status byte
}

func (e *DataExchangeError) Error() string {
	return fmt.Sprintf("data exchange error: %02x", e.Status)
}

// IsAuthError reports whether the target rejected a MIFARE authentication.
func (e *DataExchangeError) IsAuthError() bool {
	return e.Status == 0x14
}

var transientErrors = []error{
	ErrTransportRead,
	ErrTransportWrite,
	ErrNoACK,
	ErrFrameCorrupted,
	ErrChecksumMismatch,
	frame.ErrIncomplete,
}

// GetErrorType classifies err.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}
	if errors.Is(err, ErrTransportTimeout) {
		return ErrorTypeTimeout
	}
	for _, e := range transientErrors {
		if errors.Is(err, e) {
			return ErrorTypeTransient
		}
	}
	return ErrorTypePermanent
}

// IsRetryable reports whether an operation that failed with err may be
// attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return GetErrorType(err) != ErrorTypePermanent
}
