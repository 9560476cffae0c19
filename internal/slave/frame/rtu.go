// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package frame

import (
	"github.com/ot-systems/mbslave/internal/slave/model"
	"github.com/ot-systems/mbslave/internal/slave/pdu"
	"github.com/ot-systems/mbslave/modbus"
	"github.com/ot-systems/mbslave/modbus/crc"
	"github.com/ot-systems/mbslave/transport"
)

// RTU ADU size bounds in bytes: address(1) + PDU(1..253) + CRC(2).
const (
	RTUMinSize = 4
	RTUMaxSize = 256
)

// RTU returns a transport.FrameHandler answering RTU ADUs against inst.
// unhandled, if non-nil, answers function codes the dispatcher has no
// built-in handler for.
func RTU(inst *model.Instance, unhandled pdu.UnhandledFunc) transport.FrameHandler {
	return func(adu []byte) ([]byte, bool) {
		inst.Lock()
		defer inst.Unlock()
		return handleRTU(inst, adu, unhandled)
	}
}

func handleRTU(inst *model.Instance, adu []byte, unhandled pdu.UnhandledFunc) ([]byte, bool) {
	if len(adu) < RTUMinSize || len(adu) > RTUMaxSize {
		return nil, false
	}
	// Count every structurally plausible frame, even one that turns out
	// to have a bad CRC or isn't addressed to us.
	inst.IncCounter(model.CntBusMsg)
	flags := recvFlags(inst)

	// CRC before the address filter, so bus-wide corruption is counted
	// even on frames meant for another device.
	body := adu[:len(adu)-2]
	trailer := adu[len(adu)-2:]
	want := crc.Checksum(body)
	got := uint16(trailer[0]) | uint16(trailer[1])<<8
	if want != got {
		inst.IncCounter(model.CntBusCommErr)
		addRecvEvent(inst, flags|model.EventRecvCommErr)
		return nil, false
	}

	addr := body[0]
	if !acceptAddress(inst, addr) {
		addRecvEvent(inst, flags)
		return nil, false
	}

	if addr == modbus.BroadcastAddress {
		flags |= model.EventRecvBroadcast
	}
	addRecvEvent(inst, flags)

	req := modbus.ProtocolDataUnit{FunctionCode: body[1], Data: body[2:]}
	resp, send := dispatch(inst, addr, req, unhandled)
	if !send {
		return nil, false
	}
	return encodeRTU(addr, resp), true
}

func encodeRTU(addr byte, pdu modbus.ProtocolDataUnit) []byte {
	out := make([]byte, 2+len(pdu.Data)+2)
	out[0] = addr
	out[1] = pdu.FunctionCode
	copy(out[2:], pdu.Data)
	sum := crc.Checksum(out[:len(out)-2])
	out[len(out)-2] = byte(sum)
	out[len(out)-1] = byte(sum >> 8)
	return out
}
