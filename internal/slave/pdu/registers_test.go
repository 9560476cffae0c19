// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pdu

import (
	"bytes"
	"testing"

	"github.com/ot-systems/mbslave/internal/slave/model"
	"github.com/ot-systems/mbslave/modbus"
)

// sparseRegInstance binds single holding registers at addresses 0, 1 and 3,
// leaving 2 unbound.
func sparseRegInstance() *model.Instance {
	var descs []*model.RegisterDescriptor
	for _, addr := range []uint16{0, 1, 3} {
		descs = append(descs, &model.RegisterDescriptor{
			Address: addr, Type: model.RegU16,
			ReadAccess: model.RegAccessPointer, WriteAccess: model.RegAccessPointer,
			Bytes: make([]byte, 2),
		})
	}
	return model.NewInstance(nil, nil, model.NewRegisterTable(descs), nil, nil)
}

func TestReadHoldingRegistersZeroFillsLaterGaps(t *testing.T) {
	inst := sparseRegInstance()
	d, _ := inst.HoldingRegs.Find(1)
	model.WriteRegisterWords(d, 0, []uint16{0xBEEF})

	req := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeReadHoldingRegisters, Data: []byte{0x00, 0x00, 0x00, 0x04}}
	resp, ok := Handle(inst, req, nil)
	if !ok || resp.FunctionCode != modbus.FuncCodeReadHoldingRegisters {
		t.Fatalf("expected a normal response, got %+v", resp)
	}
	want := []byte{0x08, 0x00, 0x00, 0xBE, 0xEF, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(resp.Data, want) {
		t.Fatalf("expected the unbound register to read as zero\n got %x\nwant %x", resp.Data, want)
	}
}

func TestWriteMultipleRegistersIsAtomicOnMissingTarget(t *testing.T) {
	inst := sparseRegInstance()

	// Three targets starting at 1; address 2 is unbound, so nothing at all
	// may be written.
	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeWriteMultipleRegisters,
		Data:         []byte{0x00, 0x01, 0x00, 0x03, 0x06, 0x11, 0x11, 0x22, 0x22, 0x33, 0x33},
	}
	resp, ok := Handle(inst, req, nil)
	if !ok {
		t.Fatalf("expected an exception response")
	}
	if resp.FunctionCode != modbus.FuncCodeWriteMultipleRegisters|modbus.ErrorFlag ||
		resp.Data[0] != modbus.ExceptionCodeIllegalDataAddress {
		t.Fatalf("expected [0x90 0x02], got [%#x %#x]", resp.FunctionCode, resp.Data[0])
	}

	d, _ := inst.HoldingRegs.Find(1)
	if op := model.ReadRegisterWords(d, 0, 1); op.Words[0] != 0 {
		t.Fatalf("expected the first target untouched after failed pre-validation, got %#x", op.Words[0])
	}
}

func TestWriteThenReadSingleRegisterRoundTrip(t *testing.T) {
	inst := sparseRegInstance()

	write := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeWriteSingleRegister, Data: []byte{0x00, 0x03, 0x12, 0x34}}
	resp, ok := Handle(inst, write, nil)
	if !ok || !bytes.Equal(resp.Data, write.Data) {
		t.Fatalf("expected the write request to be echoed, got %x", resp.Data)
	}

	read := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeReadHoldingRegisters, Data: []byte{0x00, 0x03, 0x00, 0x01}}
	resp, _ = Handle(inst, read, nil)
	if !bytes.Equal(resp.Data, []byte{0x02, 0x12, 0x34}) {
		t.Fatalf("expected to read back the written value, got %x", resp.Data)
	}
}

func TestWriteSingleRegisterIntoMultiWordScalarNeedsPartialFlag(t *testing.T) {
	backing := make([]byte, 4)
	holding := model.NewRegisterTable([]*model.RegisterDescriptor{{
		Address: 0, Type: model.RegU32,
		ReadAccess: model.RegAccessPointer, WriteAccess: model.RegAccessPointer, Bytes: backing,
	}})
	inst := model.NewInstance(nil, nil, holding, nil, nil)

	req := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeWriteSingleRegister, Data: []byte{0x00, 0x00, 0x00, 0x2A}}
	resp, _ := Handle(inst, req, nil)
	if resp.Data[0] != modbus.ExceptionCodeIllegalDataAddress {
		t.Fatalf("expected a single-word write into a whole U32 to be refused")
	}

	d, _ := holding.Find(0)
	d.AllowPartialWrite = true
	resp, ok := Handle(inst, req, nil)
	if !ok || resp.FunctionCode != modbus.FuncCodeWriteSingleRegister {
		t.Fatalf("expected the partial write to go through once allowed, got %+v", resp)
	}
}

func TestReadWriteMultipleRegistersWritesBeforeReads(t *testing.T) {
	inst := sparseRegInstance()

	// Read 1 register at 0 while writing that same register: the response
	// must carry the newly written value.
	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadWriteMultipleRegisters,
		Data:         []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x02, 0xAB, 0xCD},
	}
	resp, ok := Handle(inst, req, nil)
	if !ok {
		t.Fatalf("expected a response")
	}
	if !bytes.Equal(resp.Data, []byte{0x02, 0xAB, 0xCD}) {
		t.Fatalf("expected the read to observe the write, got %x", resp.Data)
	}
}

func TestReadWriteMultipleRegistersWriteQuantityLimit(t *testing.T) {
	inst := sparseRegInstance()
	data := make([]byte, 9+122*2)
	data[1] = 0x00 // read addr 0
	data[3] = 0x01 // read qty 1
	data[7] = 122  // write qty over the 121 limit
	data[8] = 244
	req := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeReadWriteMultipleRegisters, Data: data}
	resp, _ := Handle(inst, req, nil)
	if resp.Data[0] != modbus.ExceptionCodeIllegalDataValue {
		t.Fatalf("expected write quantities above 121 to be rejected")
	}
}

func TestMaskWriteRegisterIdentityMasksLeaveValue(t *testing.T) {
	inst := sparseRegInstance()
	d, _ := inst.HoldingRegs.Find(0)
	model.WriteRegisterWords(d, 0, []uint16{0x55AA})

	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeMaskWriteRegister,
		Data:         []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00},
	}
	resp, ok := Handle(inst, req, nil)
	if !ok || !bytes.Equal(resp.Data, req.Data) {
		t.Fatalf("expected the mask write request to be echoed")
	}
	if op := model.ReadRegisterWords(d, 0, 1); op.Words[0] != 0x55AA {
		t.Fatalf("and=0xFFFF or=0x0000 must leave the register unchanged, got %#x", op.Words[0])
	}
}

func TestMaskWriteRegisterAppliesMasks(t *testing.T) {
	inst := sparseRegInstance()
	d, _ := inst.HoldingRegs.Find(0)
	model.WriteRegisterWords(d, 0, []uint16{0x0012})

	// Per the function's reference example: (0x12 & 0xF2) | (0x25 & ~0xF2) = 0x17.
	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeMaskWriteRegister,
		Data:         []byte{0x00, 0x00, 0x00, 0xF2, 0x00, 0x25},
	}
	if _, ok := Handle(inst, req, nil); !ok {
		t.Fatalf("expected a response")
	}
	if op := model.ReadRegisterWords(d, 0, 1); op.Words[0] != 0x0017 {
		t.Fatalf("unexpected masked value %#x", op.Words[0])
	}
}

func TestNilTableFunctionCodeIsIllegalFunction(t *testing.T) {
	inst := model.NewInstance(nil, nil, nil, nil, nil)
	req := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeReadHoldingRegisters, Data: []byte{0x00, 0x00, 0x00, 0x01}}
	resp, ok := Handle(inst, req, nil)
	if !ok || resp.Data[0] != modbus.ExceptionCodeIllegalFunction {
		t.Fatalf("expected an absent table to make the function unimplemented")
	}
}
