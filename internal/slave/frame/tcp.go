// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package frame

import (
	"encoding/binary"

	"github.com/ot-systems/mbslave/internal/slave/model"
	"github.com/ot-systems/mbslave/internal/slave/pdu"
	"github.com/ot-systems/mbslave/modbus"
	"github.com/ot-systems/mbslave/transport"
)

// TCP ADU (MBAP) size bounds in bytes: header(7) + PDU(1..253).
const (
	TCPMinSize = 8
	TCPMaxSize = 260

	tcpHeaderSize = 7
)

// TCP returns a transport.FrameHandler answering MBAP-framed ADUs against
// inst. There is no integrity field to check; the unit identifier takes
// the serial slave address's place for filtering purposes.
func TCP(inst *model.Instance, unhandled pdu.UnhandledFunc) transport.FrameHandler {
	return func(adu []byte) ([]byte, bool) {
		inst.Lock()
		defer inst.Unlock()
		return handleTCP(inst, adu, unhandled)
	}
}

func handleTCP(inst *model.Instance, adu []byte, unhandled pdu.UnhandledFunc) ([]byte, bool) {
	if len(adu) < TCPMinSize || len(adu) > TCPMaxSize {
		return nil, false
	}
	inst.IncCounter(model.CntBusMsg)
	flags := recvFlags(inst)

	txnID := binary.BigEndian.Uint16(adu[0:2])
	protoID := binary.BigEndian.Uint16(adu[2:4])
	length := binary.BigEndian.Uint16(adu[4:6])
	unitID := adu[6]

	if protoID != 0 || int(length) != len(adu)-6 {
		// TCP has no CRC/LRC of its own; a malformed MBAP header is its
		// equivalent of a corrupt frame and is counted the same way.
		inst.IncCounter(model.CntBusCommErr)
		addRecvEvent(inst, flags|model.EventRecvCommErr)
		return nil, false
	}

	if !acceptAddress(inst, unitID) {
		addRecvEvent(inst, flags)
		return nil, false
	}

	if unitID == modbus.BroadcastAddress {
		flags |= model.EventRecvBroadcast
	}
	addRecvEvent(inst, flags)

	req := modbus.ProtocolDataUnit{FunctionCode: adu[7], Data: adu[tcpHeaderSize+1:]}
	resp, send := dispatch(inst, unitID, req, unhandled)
	if !send {
		return nil, false
	}
	return encodeTCP(txnID, unitID, resp), true
}

func encodeTCP(txnID uint16, unitID byte, pdu modbus.ProtocolDataUnit) []byte {
	out := make([]byte, tcpHeaderSize+1+len(pdu.Data))
	binary.BigEndian.PutUint16(out[0:2], txnID)
	binary.BigEndian.PutUint16(out[2:4], 0)
	binary.BigEndian.PutUint16(out[4:6], uint16(1+1+len(pdu.Data)))
	out[6] = unitID
	out[7] = pdu.FunctionCode
	copy(out[8:], pdu.Data)
	return out
}
