// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pdu

import (
	"encoding/binary"

	"github.com/ot-systems/mbslave/internal/slave/model"
)

// maskWriteRegister implements function code 0x16: the new value is
// value' = (current & andMask) | (orMask &^ andMask), applied to a single
// holding register. There is no equivalent read-write-register primitive
// in the model package, so this reads the current word and writes the
// combined result back through the same descriptor.
func maskWriteRegister(inst *model.Instance, req []byte) ([]byte, model.Status) {
	if len(req) != 6 {
		return nil, model.StatusIllegalDataValue
	}
	address := binary.BigEndian.Uint16(req[0:2])
	andMask := binary.BigEndian.Uint16(req[2:4])
	orMask := binary.BigEndian.Uint16(req[4:6])

	d, offset := inst.HoldingRegs.Find(address)
	if d == nil {
		return nil, model.StatusIllegalDataAddress
	}
	if model.RegisterWriteSpan(d, offset, 1) != 1 {
		return nil, model.StatusIllegalDataAddress
	}

	cur := model.ReadRegisterWords(d, offset, 1)
	if cur.Status != model.StatusOK {
		return nil, cur.Status
	}
	if cur.N != 1 {
		return nil, model.StatusDeviceFailure
	}

	newValue := (cur.Words[0] & andMask) | (orMask &^ andMask)

	op := model.WriteRegisterWords(d, offset, []uint16{newValue})
	if op.Status != model.StatusOK {
		return nil, op.Status
	}
	if d.PostWrite != nil {
		d.PostWrite()
	}
	if inst.CommitRegsWrite != nil {
		inst.CommitRegsWrite()
	}

	resp := make([]byte, 6)
	copy(resp, req)
	return resp, model.StatusOK
}
