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

// fileTestInstance builds an instance with file 3 holding 0xDEAD, 0xBEEF
// at records 9, 10 and file 4 holding 0x1234, 0xABCD at records 1, 2.
func fileTestInstance() *model.Instance {
	file3 := make([]byte, 12*2)
	copy(file3[9*2:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	file4 := make([]byte, 4*2)
	copy(file4[1*2:], []byte{0x12, 0x34, 0xAB, 0xCD})

	newTable := func(backing []byte) *model.RegisterTable {
		return model.NewRegisterTable([]*model.RegisterDescriptor{{
			Address: 0, Type: model.RegBlockU16, BlockLen: len(backing) / 2,
			ReadAccess: model.RegAccessPointer, WriteAccess: model.RegAccessPointer, Bytes: backing,
		}})
	}
	files := model.NewFileTable([]*model.FileDescriptor{
		{FileNumber: 3, Records: newTable(file3)},
		{FileNumber: 4, Records: newTable(file4)},
	})
	return model.NewInstance(nil, nil, nil, nil, files)
}

func TestReadFileRecordTwoSubRequests(t *testing.T) {
	inst := fileTestInstance()
	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadFileRecord,
		Data: []byte{
			0x0E,
			0x06, 0x00, 0x04, 0x00, 0x01, 0x00, 0x02,
			0x06, 0x00, 0x03, 0x00, 0x09, 0x00, 0x02,
		},
	}
	resp, ok := Handle(inst, req, nil)
	if !ok {
		t.Fatalf("expected a response")
	}
	want := []byte{
		0x0C,
		0x05, 0x06, 0x12, 0x34, 0xAB, 0xCD,
		0x05, 0x06, 0xDE, 0xAD, 0xBE, 0xEF,
	}
	if !bytes.Equal(resp.Data, want) {
		t.Fatalf("unexpected response data\n got %x\nwant %x", resp.Data, want)
	}
}

func TestReadFileRecordRejectsMalformedByteCount(t *testing.T) {
	inst := fileTestInstance()
	cases := [][]byte{
		{0x06, 0x06, 0x00, 0x04, 0x00, 0x01, 0x00},             // byte count below minimum
		{0x08, 0x06, 0x00, 0x04, 0x00, 0x01, 0x00, 0x02, 0x00}, // not a multiple of 7
		{0x0E, 0x06, 0x00, 0x04, 0x00, 0x01, 0x00, 0x02},       // byte count doesn't match remainder
	}
	for _, data := range cases {
		req := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeReadFileRecord, Data: data}
		resp, _ := Handle(inst, req, nil)
		if resp.Data[0] != modbus.ExceptionCodeIllegalDataValue {
			t.Fatalf("expected illegal data value for %x, got %#x", data, resp.Data[0])
		}
	}
}

func TestReadFileRecordRejectsBadReferenceType(t *testing.T) {
	inst := fileTestInstance()
	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadFileRecord,
		Data:         []byte{0x07, 0x07, 0x00, 0x04, 0x00, 0x01, 0x00, 0x01},
	}
	resp, _ := Handle(inst, req, nil)
	if resp.Data[0] != modbus.ExceptionCodeIllegalDataValue {
		t.Fatalf("expected illegal data value for a non-0x06 reference type")
	}
}

func TestReadFileRecordFileZeroIsIllegalAddress(t *testing.T) {
	inst := fileTestInstance()
	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadFileRecord,
		Data:         []byte{0x07, 0x06, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01},
	}
	resp, _ := Handle(inst, req, nil)
	if resp.Data[0] != modbus.ExceptionCodeIllegalDataAddress {
		t.Fatalf("expected illegal data address for file number 0")
	}
}

func TestReadFileRecordRecordNumberCeiling(t *testing.T) {
	inst := fileTestInstance()
	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadFileRecord,
		Data:         []byte{0x07, 0x06, 0x00, 0x03, 0x27, 0x10, 0x00, 0x01}, // record 0x2710 > 0x270F
	}
	resp, _ := Handle(inst, req, nil)
	if resp.Data[0] != modbus.ExceptionCodeIllegalDataAddress {
		t.Fatalf("expected the standard record-number ceiling to be enforced")
	}

	// With extended records enabled, the same record number is only an
	// addressing error because the file doesn't actually reach it.
	inst = fileTestInstance()
	inst.AllowExtFileRecs = true
	resp, _ = Handle(inst, req, nil)
	if resp.Data[0] != modbus.ExceptionCodeIllegalDataAddress {
		t.Fatalf("expected a plain addressing error for an out-of-range record")
	}
}

func TestWriteFileRecordEchoesRequestAndApplies(t *testing.T) {
	inst := fileTestInstance()
	commits := 0
	inst.CommitRegsWrite = func() { commits++ }

	reqData := []byte{
		0x0B,
		0x06, 0x00, 0x04, 0x00, 0x01, 0x00, 0x02, 0x11, 0x11, 0x22, 0x22,
	}
	req := modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeWriteFileRecord, Data: reqData}
	resp, ok := Handle(inst, req, nil)
	if !ok {
		t.Fatalf("expected a response")
	}
	if !bytes.Equal(resp.Data, reqData) {
		t.Fatalf("expected the write request to be echoed verbatim")
	}
	if commits != 1 {
		t.Fatalf("expected the registers commit hook to run once, ran %d times", commits)
	}

	read := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadFileRecord,
		Data:         []byte{0x07, 0x06, 0x00, 0x04, 0x00, 0x01, 0x00, 0x02},
	}
	readResp, _ := Handle(inst, read, nil)
	if !bytes.Equal(readResp.Data, []byte{0x06, 0x05, 0x06, 0x11, 0x11, 0x22, 0x22}) {
		t.Fatalf("expected the written records to read back, got %x", readResp.Data)
	}
}

func TestWriteFileRecordPreValidatesAllSubRequests(t *testing.T) {
	inst := fileTestInstance()
	// First sub-request is valid, second targets a missing file; nothing
	// may be written.
	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeWriteFileRecord,
		Data: []byte{
			0x16,
			0x06, 0x00, 0x04, 0x00, 0x01, 0x00, 0x02, 0x11, 0x11, 0x22, 0x22,
			0x06, 0x00, 0x63, 0x00, 0x01, 0x00, 0x02, 0x33, 0x33, 0x44, 0x44,
		},
	}
	resp, _ := Handle(inst, req, nil)
	if resp.Data[0] != modbus.ExceptionCodeIllegalDataAddress {
		t.Fatalf("expected illegal data address for the missing file")
	}

	read := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadFileRecord,
		Data:         []byte{0x07, 0x06, 0x00, 0x04, 0x00, 0x01, 0x00, 0x02},
	}
	readResp, _ := Handle(inst, read, nil)
	if !bytes.Equal(readResp.Data, []byte{0x06, 0x05, 0x06, 0x12, 0x34, 0xAB, 0xCD}) {
		t.Fatalf("expected file 4 untouched after a failed batch, got %x", readResp.Data)
	}
}
