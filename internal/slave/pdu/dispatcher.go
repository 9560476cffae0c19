// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package pdu implements the Modbus protocol data unit dispatcher: it
// routes a request's function code to the matching handler against a
// model.Instance, maintains the diagnostic counters and communication
// event log, and enforces listen-only mode.
package pdu

import (
	"github.com/ot-systems/mbslave/internal/slave/model"
	"github.com/ot-systems/mbslave/modbus"
)

// UnhandledFunc answers a function code this dispatcher has no built-in
// handler for (Report Slave ID, or any vendor-specific extension).
type UnhandledFunc func(inst *model.Instance, req modbus.ProtocolDataUnit) (data []byte, status model.Status)

// Handle dispatches one request PDU against inst and returns the response
// PDU. ok reports whether a response should be sent at all: it is false
// for requests received while the device is (or was, before this request)
// in listen-only mode, mirroring how a real listen-only slave goes
// completely silent except to accept a communications restart.
//
// Callers must hold inst's write lock; Handle mutates counters, the event
// log and, for some sub-functions, listen-only state and the data model
// itself.
func Handle(inst *model.Instance, req modbus.ProtocolDataUnit, unhandled UnhandledFunc) (resp modbus.ProtocolDataUnit, ok bool) {
	sendEvent := byte(model.EventIsSend)

	isRestartRequest := req.FunctionCode == modbus.FuncCodeDiagnostics &&
		len(req.Data) >= 2 &&
		(uint16(req.Data[0])<<8|uint16(req.Data[1])) == modbus.SubFuncDiagRestartCommOption

	if inst.IsListenOnly() && !isRestartRequest {
		sendEvent |= model.EventSendListenOnly
		inst.AddEvent(sendEvent)
		return modbus.ProtocolDataUnit{}, false
	}

	// Slave message count: frames addressed specifically to this device.
	// Bus message count (all traffic, including broadcasts and frames
	// addressed elsewhere) is tallied one layer down, in the ADU framer.
	inst.IncCounter(model.CntSlaveMsg)
	wasListenOnly := inst.IsListenOnly()

	data, status := route(inst, req, unhandled)

	if status == model.StatusOK {
		resp = modbus.ProtocolDataUnit{FunctionCode: req.FunctionCode, Data: data}
	} else {
		resp = modbus.ProtocolDataUnit{FunctionCode: req.FunctionCode | modbus.ErrorFlag, Data: []byte{status.ExceptionCode()}}

		switch status {
		case model.StatusIllegalFunction, model.StatusIllegalDataAddress, model.StatusIllegalDataValue:
			sendEvent |= model.EventSendReadEx
		case model.StatusDeviceFailure:
			sendEvent |= model.EventSendAbortEx
		case model.StatusAcknowledge, model.StatusBusy:
			sendEvent |= model.EventSendBusyEx
		case model.StatusNegativeAcknowledge:
			sendEvent |= model.EventSendNAKEx
		}
	}

	// Listen-only mode takes effect only after the response for the
	// request that triggered it has gone out, so we report it as it was
	// before this request ran.
	if wasListenOnly {
		sendEvent |= model.EventSendListenOnly
	}
	// A restart with data 0xFF00 wipes the event log, its own reply
	// included; a Get Comm Event Log right after it must come back empty.
	restartCleared := isRestartRequest && status == model.StatusOK &&
		len(req.Data) >= 4 && req.Data[2] == 0xFF && req.Data[3] == 0x00
	if !restartCleared {
		inst.AddEvent(sendEvent)
	}

	if status == model.StatusOK &&
		req.FunctionCode != modbus.FuncCodeDiagnostics &&
		req.FunctionCode != modbus.FuncCodeCommEventCounter &&
		req.FunctionCode != modbus.FuncCodeCommEventLog {
		inst.IncCommEventCounter()
	}
	if status != model.StatusOK {
		inst.IncCounter(model.CntException)
	}
	if status == model.StatusNegativeAcknowledge {
		inst.IncCounter(model.CntNAK)
	}
	if status == model.StatusBusy {
		inst.IncCounter(model.CntBusy)
	}

	if inst.IsListenOnly() || wasListenOnly {
		return modbus.ProtocolDataUnit{}, false
	}
	return resp, true
}

// route hands the request to the matching built-in handler. A function
// code whose descriptor table (or required host callback) is absent is
// treated as unimplemented and falls through to the unhandled hook, or to
// an illegal-function exception without one.
func route(inst *model.Instance, req modbus.ProtocolDataUnit, unhandled UnhandledFunc) ([]byte, model.Status) {
	switch req.FunctionCode {
	case modbus.FuncCodeReadCoils:
		if inst.Coils != nil {
			return readBits(inst.Coils, req.Data)
		}
	case modbus.FuncCodeReadDiscreteInputs:
		if inst.DiscreteInputs != nil {
			return readBits(inst.DiscreteInputs, req.Data)
		}
	case modbus.FuncCodeReadHoldingRegisters:
		if inst.HoldingRegs != nil {
			return readRegs(inst.HoldingRegs, req.Data)
		}
	case modbus.FuncCodeReadInputRegisters:
		if inst.InputRegs != nil {
			return readRegs(inst.InputRegs, req.Data)
		}
	case modbus.FuncCodeWriteSingleCoil:
		if inst.Coils != nil {
			return writeSingleCoil(inst, req.Data)
		}
	case modbus.FuncCodeWriteSingleRegister:
		if inst.HoldingRegs != nil {
			return writeSingleRegister(inst, req.Data)
		}
	case modbus.FuncCodeReadExceptionStatus:
		if inst.Serial.ReadExceptionStatus != nil {
			return readExceptionStatus(inst, req.Data)
		}
	case modbus.FuncCodeDiagnostics:
		return diagnostics(inst, req.Data)
	case modbus.FuncCodeCommEventCounter:
		return commEventCounter(inst, req.Data)
	case modbus.FuncCodeCommEventLog:
		return commEventLog(inst, req.Data)
	case modbus.FuncCodeWriteMultipleCoils:
		if inst.Coils != nil {
			return writeMultipleCoils(inst, req.Data)
		}
	case modbus.FuncCodeWriteMultipleRegisters:
		if inst.HoldingRegs != nil {
			return writeMultipleRegisters(inst, req.Data)
		}
	case modbus.FuncCodeReadFileRecord:
		if inst.Files != nil {
			return readFileRecord(inst, req.Data)
		}
	case modbus.FuncCodeWriteFileRecord:
		if inst.Files != nil {
			return writeFileRecord(inst, req.Data)
		}
	case modbus.FuncCodeMaskWriteRegister:
		if inst.HoldingRegs != nil {
			return maskWriteRegister(inst, req.Data)
		}
	case modbus.FuncCodeReadWriteMultipleRegisters:
		if inst.HoldingRegs != nil {
			return readWriteMultipleRegisters(inst, req.Data)
		}
	}

	if unhandled != nil {
		return unhandled(inst, req)
	}
	return nil, model.StatusIllegalFunction
}
