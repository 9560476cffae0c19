// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pdu

import (
	"encoding/binary"

	"github.com/ot-systems/mbslave/internal/slave/model"
	"github.com/ot-systems/mbslave/modbus"
)

// diagCounters maps a "return counter" diagnostic sub-function to the
// counter it reads.
var diagCounters = map[uint16]model.Counter{
	modbus.SubFuncDiagReturnBusMsgCount:     model.CntBusMsg,
	modbus.SubFuncDiagReturnBusCommErrCount: model.CntBusCommErr,
	modbus.SubFuncDiagReturnExceptionCount:  model.CntException,
	modbus.SubFuncDiagReturnSlaveMsgCount:   model.CntSlaveMsg,
	modbus.SubFuncDiagReturnNoRespCount:     model.CntNoResp,
	modbus.SubFuncDiagReturnNAKCount:        model.CntNAK,
	modbus.SubFuncDiagReturnBusyCount:       model.CntBusy,
	modbus.SubFuncDiagReturnOverrunCount:    model.CntBusCharOverrun,
}

// diagnostics implements function code 0x08 and its sub-functions. The
// loopback sub-function echoes a request of any length; every other
// sub-function carries exactly one 16-bit data word.
func diagnostics(inst *model.Instance, req []byte) ([]byte, model.Status) {
	if len(req) < 2 {
		return nil, model.StatusIllegalDataValue
	}
	subFunc := binary.BigEndian.Uint16(req[0:2])

	if subFunc == modbus.SubFuncDiagReturnQueryData {
		return append([]byte(nil), req...), model.StatusOK
	}

	if len(req) != 4 {
		return nil, model.StatusIllegalDataValue
	}
	data := req[2:4]
	val := binary.BigEndian.Uint16(data)

	switch subFunc {
	case modbus.SubFuncDiagRestartCommOption:
		if val != 0x0000 && val != 0xFF00 {
			return nil, model.StatusIllegalDataValue
		}
		if inst.Serial.RequestRestart != nil {
			inst.Serial.RequestRestart()
		}
		inst.SetListenOnly(false)
		inst.ResetCounters()
		if val == 0xFF00 {
			inst.ClearEventLog()
		} else {
			inst.AddEvent(model.EventCommRestart)
		}
		return echoDiag(subFunc, data), model.StatusOK

	case modbus.SubFuncDiagReturnDiagnosticReg:
		if val != 0 {
			return nil, model.StatusIllegalDataValue
		}
		var reg uint16
		if inst.Serial.ReadDiagnosticsReg != nil {
			reg = inst.Serial.ReadDiagnosticsReg()
		}
		var out [2]byte
		binary.BigEndian.PutUint16(out[:], reg)
		return echoDiag(subFunc, out[:]), model.StatusOK

	case modbus.SubFuncDiagChangeASCIIDelimiter:
		if data[0] > 127 || data[1] != 0 {
			return nil, model.StatusIllegalDataValue
		}
		inst.SetASCIIDelimiter(data[0])
		return echoDiag(subFunc, data), model.StatusOK

	case modbus.SubFuncDiagForceListenOnlyMode:
		if val != 0 {
			return nil, model.StatusIllegalDataValue
		}
		inst.SetListenOnly(true)
		inst.AddEvent(model.EventEnteredListenOnly)
		// No value bytes follow a forced entry into listen-only mode; the
		// response never reaches the master anyway, since the dispatcher
		// suppresses it once is_listen_only flips true mid-request.
		res := make([]byte, 2)
		binary.BigEndian.PutUint16(res, subFunc)
		return res, model.StatusOK

	case modbus.SubFuncDiagClearCountersAndDiag:
		if val != 0 {
			return nil, model.StatusIllegalDataValue
		}
		inst.ResetCounters()
		if inst.Serial.ResetDiagnosticsReg != nil {
			inst.Serial.ResetDiagnosticsReg()
		}
		return echoDiag(subFunc, data), model.StatusOK

	case modbus.SubFuncDiagClearOverrunCount:
		if val != 0 {
			return nil, model.StatusIllegalDataValue
		}
		inst.ResetCounter(model.CntBusCharOverrun)
		return echoDiag(subFunc, data), model.StatusOK

	default:
		if c, ok := diagCounters[subFunc]; ok {
			if val != 0 {
				return nil, model.StatusIllegalDataValue
			}
			var out [2]byte
			binary.BigEndian.PutUint16(out[:], inst.Counter(c))
			return echoDiag(subFunc, out[:]), model.StatusOK
		}
		return nil, model.StatusIllegalFunction
	}
}

func echoDiag(subFunc uint16, data []byte) []byte {
	res := make([]byte, 4)
	binary.BigEndian.PutUint16(res, subFunc)
	copy(res[2:], data)
	return res
}

// commEventCounter implements function code 0x0B.
func commEventCounter(inst *model.Instance, req []byte) ([]byte, model.Status) {
	if len(req) != 0 {
		return nil, model.StatusIllegalDataValue
	}
	status := inst.Status()
	res := make([]byte, 4)
	binary.BigEndian.PutUint16(res[0:2], status)
	binary.BigEndian.PutUint16(res[2:4], inst.CommEventCounter())
	return res, model.StatusOK
}

// commEventLog implements function code 0x0C.
func commEventLog(inst *model.Instance, req []byte) ([]byte, model.Status) {
	if len(req) != 0 {
		return nil, model.StatusIllegalDataValue
	}
	status := inst.Status()
	events := inst.NewestEvents(inst.EventLogCount())

	res := make([]byte, 7+len(events))
	res[0] = byte(len(res) - 1)
	binary.BigEndian.PutUint16(res[1:3], status)
	binary.BigEndian.PutUint16(res[3:5], inst.CommEventCounter())
	binary.BigEndian.PutUint16(res[5:7], inst.Counter(model.CntBusMsg))
	copy(res[7:], events)
	return res, model.StatusOK
}
