// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import "github.com/ot-systems/mbslave/modbus"

// Status is the internal result of a data-model or PDU operation. It maps
// 1:1 onto a Modbus exception code, except for StatusOK which means "send
// a normal response".
type Status int

const (
	StatusOK Status = iota
	StatusIllegalFunction
	StatusIllegalDataAddress
	StatusIllegalDataValue
	StatusDeviceFailure
	StatusAcknowledge
	StatusBusy
	StatusNegativeAcknowledge
	StatusMemoryParityError
)

// ExceptionCode returns the wire exception code for a non-OK status.
func (s Status) ExceptionCode() byte {
	switch s {
	case StatusIllegalFunction:
		return modbus.ExceptionCodeIllegalFunction
	case StatusIllegalDataAddress:
		return modbus.ExceptionCodeIllegalDataAddress
	case StatusIllegalDataValue:
		return modbus.ExceptionCodeIllegalDataValue
	case StatusDeviceFailure:
		return modbus.ExceptionCodeServerDeviceFailure
	case StatusAcknowledge:
		return modbus.ExceptionCodeAcknowledge
	case StatusBusy:
		return modbus.ExceptionCodeServerDeviceBusy
	case StatusNegativeAcknowledge:
		return modbus.ExceptionCodeNegativeAcknowledge
	case StatusMemoryParityError:
		return modbus.ExceptionCodeMemoryParityError
	default:
		return modbus.ExceptionCodeServerDeviceFailure
	}
}
