// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pdu

import (
	"testing"

	"github.com/ot-systems/mbslave/internal/slave/model"
	"github.com/ot-systems/mbslave/modbus"
)

func newTestInstance() *model.Instance {
	var coilBacking byte
	coils := model.NewCoilTable([]*model.CoilDescriptor{{
		Address: 0, ReadAccess: model.BitAccessPointer, WriteAccess: model.BitAccessPointer,
		Ptr: &coilBacking,
	}})

	regBacking := make([]byte, 20)
	holding := model.NewRegisterTable([]*model.RegisterDescriptor{{
		Address: 0, Type: model.RegBlockU16, BlockLen: 10,
		ReadAccess: model.RegAccessPointer, WriteAccess: model.RegAccessPointer, Bytes: regBacking,
	}})

	return model.NewInstance(coils, nil, holding, nil, nil)
}

func TestReadHoldingRegistersHappyPath(t *testing.T) {
	inst := newTestInstance()
	req := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeReadHoldingRegisters, Data: []byte{0x00, 0x00, 0x00, 0x02}}
	resp, ok := Handle(inst, req, nil)
	if !ok {
		t.Fatalf("expected a response")
	}
	if resp.FunctionCode != modbus.FuncCodeReadHoldingRegisters {
		t.Fatalf("unexpected function code %#x", resp.FunctionCode)
	}
	if resp.Data[0] != 4 { // 2 registers * 2 bytes
		t.Fatalf("unexpected byte count %d", resp.Data[0])
	}
}

func TestIllegalDataAddressMapsToExceptionCode(t *testing.T) {
	inst := newTestInstance()
	req := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeReadHoldingRegisters, Data: []byte{0x00, 0x64, 0x00, 0x01}}
	resp, ok := Handle(inst, req, nil)
	if !ok {
		t.Fatalf("expected an exception response to still be sent")
	}
	if resp.FunctionCode != modbus.FuncCodeReadHoldingRegisters|modbus.ErrorFlag {
		t.Fatalf("expected error flag set on function code")
	}
	if resp.Data[0] != modbus.ExceptionCodeIllegalDataAddress {
		t.Fatalf("expected illegal data address exception, got %#x", resp.Data[0])
	}
	if inst.Counter(model.CntException) != 1 {
		t.Fatalf("expected exception counter to increment")
	}
}

func TestUnknownFunctionCodeIsIllegalFunction(t *testing.T) {
	inst := newTestInstance()
	req := modbus.ProtocolDataUnit{FunctionCode: 0x2A, Data: nil}
	resp, ok := Handle(inst, req, nil)
	if !ok || resp.Data[0] != modbus.ExceptionCodeIllegalFunction {
		t.Fatalf("expected illegal function exception for an unhandled code")
	}
}

func TestUnhandledFuncIsConsulted(t *testing.T) {
	inst := newTestInstance()
	called := false
	unhandled := func(inst *model.Instance, req modbus.ProtocolDataUnit) ([]byte, model.Status) {
		called = true
		return []byte{0x2A, 0x01, 0x02}, model.StatusOK
	}
	req := modbus.ProtocolDataUnit{FunctionCode: 0x2A}
	resp, ok := Handle(inst, req, unhandled)
	if !called || !ok || resp.FunctionCode != 0x2A {
		t.Fatalf("expected the unhandled hook to answer the request")
	}
}

func TestForceListenOnlySuppressesSubsequentReplies(t *testing.T) {
	inst := newTestInstance()

	// Diagnostics sub-function 0x04: Force Listen Only Mode.
	req := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeDiagnostics, Data: []byte{0x00, 0x04, 0x00, 0x00}}
	_, ok := Handle(inst, req, nil)
	if ok {
		t.Fatalf("the force-listen-only response itself must never be sent")
	}
	if !inst.IsListenOnly() {
		t.Fatalf("expected instance to be in listen-only mode")
	}

	// A normal request while listen-only must go completely unanswered.
	readReq := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeReadHoldingRegisters, Data: []byte{0x00, 0x00, 0x00, 0x01}}
	_, ok = Handle(inst, readReq, nil)
	if ok {
		t.Fatalf("expected listen-only mode to suppress all replies")
	}
}

func TestRestartCommunicationsOptionClearsListenOnly(t *testing.T) {
	inst := newTestInstance()
	inst.SetListenOnly(true)

	// A restart request is accepted even while listen-only, but - like every
	// other request received during listen-only - gets no reply; the state
	// change still takes effect.
	req := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeDiagnostics, Data: []byte{0x00, 0x01, 0xFF, 0x00}}
	_, ok := Handle(inst, req, nil)
	if ok {
		t.Fatalf("expected no reply to a request received while listen-only, even the restart itself")
	}
	if inst.IsListenOnly() {
		t.Fatalf("expected listen-only mode to be cleared by a restart request")
	}
}

func TestRestartCommunicationsOptionWhenNotListenOnlyReplies(t *testing.T) {
	inst := newTestInstance()

	req := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeDiagnostics, Data: []byte{0x00, 0x01, 0x00, 0x00}}
	resp, ok := Handle(inst, req, nil)
	if !ok {
		t.Fatalf("expected the restart request to be answered when not already listen-only")
	}
	if resp.FunctionCode != modbus.FuncCodeDiagnostics {
		t.Fatalf("unexpected function code in restart response")
	}
}

func TestDiagnosticsCounterRoundTrip(t *testing.T) {
	inst := newTestInstance()
	inst.IncCounter(model.CntBusMsg)
	inst.IncCounter(model.CntBusMsg)

	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeDiagnostics,
		Data:         []byte{0x00, modbus.SubFuncDiagReturnBusMsgCount, 0x00, 0x00},
	}
	resp, ok := Handle(inst, req, nil)
	if !ok {
		t.Fatalf("expected a response")
	}
	count := uint16(resp.Data[2])<<8 | uint16(resp.Data[3])
	if count != 2 {
		t.Fatalf("expected echoed bus message count 2, got %d", count)
	}
}

func TestCommEventCounterDoesNotSelfIncrement(t *testing.T) {
	inst := newTestInstance()
	before := inst.CommEventCounter()
	req := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeCommEventCounter}
	if _, ok := Handle(inst, req, nil); !ok {
		t.Fatalf("expected a response")
	}
	if inst.CommEventCounter() != before {
		t.Fatalf("Get Comm Event Counter must not itself advance the counter")
	}
}

func TestWriteSingleCoilRejectsBadValue(t *testing.T) {
	inst := newTestInstance()
	req := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeWriteSingleCoil, Data: []byte{0x00, 0x00, 0x12, 0x34}}
	resp, ok := Handle(inst, req, nil)
	if !ok || resp.Data[0] != modbus.ExceptionCodeIllegalDataValue {
		t.Fatalf("expected illegal data value for a non-0xFF00/0x0000 coil value")
	}
}
