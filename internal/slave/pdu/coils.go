// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pdu

import (
	"encoding/binary"

	"github.com/ot-systems/mbslave/internal/slave/model"
	"github.com/ot-systems/mbslave/modbus"
)

const (
	maxReadBits       = 2000
	maxWriteBits      = 1968
	maxReadRegisters  = 125
	maxWriteRegisters = 123
	// Read/Write Multiple Registers carries both ranges in one PDU, which
	// costs the write side two registers of headroom.
	maxReadWriteWriteRegisters = 121
)

// readBits implements function codes 0x01 (Read Coils) and 0x02 (Read
// Discrete Inputs): both pack one bit per addressed descriptor into the
// response, with the unused high bits of the last byte zero-filled.
func readBits(table *model.CoilTable, req []byte) ([]byte, model.Status) {
	if len(req) != 4 {
		return nil, model.StatusIllegalDataValue
	}
	start := binary.BigEndian.Uint16(req[0:2])
	quantity := binary.BigEndian.Uint16(req[2:4])
	if quantity == 0 || quantity > maxReadBits {
		return nil, model.StatusIllegalDataValue
	}

	// Only the first coil must exist; a later unbound (or no-read-access)
	// address just reads back as 0, while a read-locked one fails the read.
	if table.Find(start) == nil {
		return nil, model.StatusIllegalDataAddress
	}

	byteCount := int(quantity+7) / 8
	out := make([]byte, 1+byteCount)
	out[0] = byte(byteCount)

	for i := uint16(0); i < quantity; i++ {
		c := table.Find(start + i)
		if c == nil {
			continue
		}
		switch model.ReadCoil(c) {
		case model.CoilReadOn:
			out[1+i/8] |= 1 << (i % 8)
		case model.CoilReadOff, model.CoilReadNoAccess:
			// already zero
		case model.CoilReadLocked:
			return nil, model.StatusIllegalDataAddress
		case model.CoilReadDevFail:
			return nil, model.StatusDeviceFailure
		}
	}
	return out, model.StatusOK
}

// writeSingleCoil implements function code 0x05.
func writeSingleCoil(inst *model.Instance, req []byte) ([]byte, model.Status) {
	if len(req) != 4 {
		return nil, model.StatusIllegalDataValue
	}
	address := binary.BigEndian.Uint16(req[0:2])
	value := binary.BigEndian.Uint16(req[2:4])
	if value != modbus.CoilOn && value != modbus.CoilOff {
		return nil, model.StatusIllegalDataValue
	}

	c := inst.Coils.Find(address)
	if c == nil || !model.CoilWriteAllowed(c) {
		// An unwritable coil looks no different from a missing one.
		return nil, model.StatusIllegalDataAddress
	}
	if st := model.WriteCoil(c, value == modbus.CoilOn); st != model.StatusOK {
		return nil, st
	}
	if c.PostWrite != nil {
		c.PostWrite()
	}
	if inst.CommitCoilsWrite != nil {
		inst.CommitCoilsWrite()
	}

	resp := make([]byte, 4)
	copy(resp, req)
	return resp, model.StatusOK
}

// writeMultipleCoils implements function code 0x0F. Every addressed coil is
// validated writable before any write is applied.
func writeMultipleCoils(inst *model.Instance, req []byte) ([]byte, model.Status) {
	if len(req) < 6 {
		return nil, model.StatusIllegalDataValue
	}
	start := binary.BigEndian.Uint16(req[0:2])
	quantity := binary.BigEndian.Uint16(req[2:4])
	byteCount := req[4]
	values := req[5:]

	if quantity == 0 || quantity > maxWriteBits || int(byteCount) != (int(quantity)+7)/8 || len(values) != int(byteCount) {
		return nil, model.StatusIllegalDataValue
	}

	descs := make([]*model.CoilDescriptor, quantity)
	for i := uint16(0); i < quantity; i++ {
		c := inst.Coils.Find(start + i)
		if c == nil || !model.CoilWriteAllowed(c) {
			return nil, model.StatusIllegalDataAddress
		}
		descs[i] = c
	}

	for i, c := range descs {
		bit := values[i/8]&(1<<(uint(i)%8)) != 0
		if st := model.WriteCoil(c, bit); st != model.StatusOK {
			return nil, st
		}
		if c.PostWrite != nil {
			c.PostWrite()
		}
	}
	if inst.CommitCoilsWrite != nil {
		inst.CommitCoilsWrite()
	}

	resp := make([]byte, 4)
	copy(resp, req[0:4])
	return resp, model.StatusOK
}
