// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pdu

import (
	"encoding/binary"

	"github.com/ot-systems/mbslave/internal/slave/model"
)

// readRegs implements function codes 0x03 (Read Holding Registers) and
// 0x04 (Read Input Registers).
func readRegs(table *model.RegisterTable, req []byte) ([]byte, model.Status) {
	if len(req) != 4 {
		return nil, model.StatusIllegalDataValue
	}
	start := binary.BigEndian.Uint16(req[0:2])
	quantity := binary.BigEndian.Uint16(req[2:4])
	if quantity == 0 || quantity > maxReadRegisters {
		return nil, model.StatusIllegalDataValue
	}
	words, st := readRegisterRange(table, start, quantity)
	if st != model.StatusOK {
		return nil, st
	}
	return encodeRegs(words), model.StatusOK
}

// writeSingleRegister implements function code 0x06.
func writeSingleRegister(inst *model.Instance, req []byte) ([]byte, model.Status) {
	if len(req) != 4 {
		return nil, model.StatusIllegalDataValue
	}
	address := binary.BigEndian.Uint16(req[0:2])
	value := binary.BigEndian.Uint16(req[2:4])

	d, offset := inst.HoldingRegs.Find(address)
	if d == nil {
		return nil, model.StatusIllegalDataAddress
	}
	if model.RegisterWriteSpan(d, offset, 1) != 1 {
		// Covers locked and unwritable registers, and single-word writes
		// into a multi-word scalar that doesn't accept partial updates.
		return nil, model.StatusIllegalDataAddress
	}
	op := model.WriteRegisterWords(d, offset, []uint16{value})
	if op.Status != model.StatusOK {
		return nil, op.Status
	}
	if d.PostWrite != nil {
		d.PostWrite()
	}
	if inst.CommitRegsWrite != nil {
		inst.CommitRegsWrite()
	}

	resp := make([]byte, 4)
	copy(resp, req)
	return resp, model.StatusOK
}

// writeMultipleRegisters implements function code 0x10. Every addressed
// register is validated writable before any write is applied.
func writeMultipleRegisters(inst *model.Instance, req []byte) ([]byte, model.Status) {
	if len(req) < 5 {
		return nil, model.StatusIllegalDataValue
	}
	start := binary.BigEndian.Uint16(req[0:2])
	quantity := binary.BigEndian.Uint16(req[2:4])
	byteCount := req[4]
	values := req[5:]

	if quantity == 0 || quantity > maxWriteRegisters || int(byteCount) != int(quantity)*2 || len(values) != int(byteCount) {
		return nil, model.StatusIllegalDataValue
	}
	if !registerWriteAllowedRange(inst.HoldingRegs, start, quantity) {
		return nil, model.StatusIllegalDataAddress
	}

	if st := writeRegisterRange(inst.HoldingRegs, start, wordsFromWireBytes(values)); st != model.StatusOK {
		return nil, st
	}
	if inst.CommitRegsWrite != nil {
		inst.CommitRegsWrite()
	}

	resp := make([]byte, 4)
	copy(resp, req[0:4])
	return resp, model.StatusOK
}

// readWriteMultipleRegisters implements function code 0x17. The read
// address range is validated before the write is applied (so a malformed
// read request leaves the model untouched), but the write itself runs
// before the read, so a read range overlapping the write range observes
// the new values.
func readWriteMultipleRegisters(inst *model.Instance, req []byte) ([]byte, model.Status) {
	if len(req) < 9 {
		return nil, model.StatusIllegalDataValue
	}
	readStart := binary.BigEndian.Uint16(req[0:2])
	readQty := binary.BigEndian.Uint16(req[2:4])
	writeStart := binary.BigEndian.Uint16(req[4:6])
	writeQty := binary.BigEndian.Uint16(req[6:8])
	byteCount := req[8]
	values := req[9:]

	if readQty == 0 || readQty > maxReadRegisters ||
		writeQty == 0 || writeQty > maxReadWriteWriteRegisters ||
		int(byteCount) != int(writeQty)*2 || len(values) != int(byteCount) {
		return nil, model.StatusIllegalDataValue
	}

	if _, st := readRegisterRange(inst.HoldingRegs, readStart, readQty); st != model.StatusOK {
		return nil, st
	}
	if !registerWriteAllowedRange(inst.HoldingRegs, writeStart, writeQty) {
		return nil, model.StatusIllegalDataAddress
	}

	if st := writeRegisterRange(inst.HoldingRegs, writeStart, wordsFromWireBytes(values)); st != model.StatusOK {
		return nil, st
	}
	if inst.CommitRegsWrite != nil {
		inst.CommitRegsWrite()
	}

	words, st := readRegisterRange(inst.HoldingRegs, readStart, readQty)
	if st != model.StatusOK {
		return nil, st
	}
	return encodeRegs(words), model.StatusOK
}

// readRegisterRange reads quantity consecutive registers starting at
// start. The first register must exist; a later unbound address is
// zero-filled, same as the file-record accessor.
func readRegisterRange(table *model.RegisterTable, start, quantity uint16) ([]uint16, model.Status) {
	if d, _ := table.Find(start); d == nil {
		return nil, model.StatusIllegalDataAddress
	}

	words := make([]uint16, quantity)
	filled := 0
	for filled < int(quantity) {
		addr := start + uint16(filled)
		d, offset := table.Find(addr)
		if d == nil {
			filled++
			continue
		}
		op := model.ReadRegisterWords(d, offset, int(quantity)-filled)
		if op.Status != model.StatusOK {
			return nil, op.Status
		}
		if op.N == 0 {
			return nil, model.StatusDeviceFailure
		}
		copy(words[filled:], op.Words)
		filled += op.N
	}
	return words, model.StatusOK
}

// registerWriteAllowedRange reports whether every register in
// [start, start+quantity) resolves to a descriptor that accepts its part
// of the write.
func registerWriteAllowedRange(table *model.RegisterTable, start, quantity uint16) bool {
	checked := 0
	for checked < int(quantity) {
		addr := start + uint16(checked)
		d, offset := table.Find(addr)
		if d == nil {
			return false
		}
		span := model.RegisterWriteSpan(d, offset, int(quantity)-checked)
		if span == 0 {
			return false
		}
		checked += span
	}
	return true
}

// writeRegisterRange writes words starting at start. Callers must have
// already validated the whole range with registerWriteAllowedRange.
func writeRegisterRange(table *model.RegisterTable, start uint16, words []uint16) model.Status {
	written := 0
	for written < len(words) {
		addr := start + uint16(written)
		d, offset := table.Find(addr)
		if d == nil {
			return model.StatusIllegalDataAddress
		}
		n := d.Size() - offset
		if n > len(words)-written {
			n = len(words) - written
		}
		op := model.WriteRegisterWords(d, offset, words[written:written+n])
		if op.Status != model.StatusOK {
			return op.Status
		}
		if d.PostWrite != nil {
			d.PostWrite()
		}
		written += n
	}
	return model.StatusOK
}

func encodeRegs(words []uint16) []byte {
	out := make([]byte, 1+2*len(words))
	out[0] = byte(2 * len(words))
	for i, w := range words {
		binary.BigEndian.PutUint16(out[1+2*i:], w)
	}
	return out
}

func wordsFromWireBytes(values []byte) []uint16 {
	n := len(values) / 2
	words := make([]uint16, n)
	for i := 0; i < n; i++ {
		words[i] = binary.BigEndian.Uint16(values[i*2:])
	}
	return words
}
