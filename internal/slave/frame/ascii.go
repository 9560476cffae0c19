// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package frame

import (
	"github.com/ot-systems/mbslave/internal/slave/model"
	"github.com/ot-systems/mbslave/internal/slave/pdu"
	"github.com/ot-systems/mbslave/modbus"
	"github.com/ot-systems/mbslave/modbus/lrc"
	"github.com/ot-systems/mbslave/transport"
)

// ASCII ADU size bounds in characters: ':' + hex(addr) + hex(pdu) +
// hex(lrc) + CR + delimiter.
const (
	ASCIIMinSize = 11
	ASCIIMaxSize = 513

	asciiStart = ':'
	asciiCR    = 0x0D
)

// ASCII returns a transport.FrameHandler answering ASCII ADUs against
// inst. A frame whose trailing delimiter doesn't match the instance's
// configured one (default LF, changeable via diagnostic sub-function
// 0x03) is dropped as malformed.
func ASCII(inst *model.Instance, unhandled pdu.UnhandledFunc) transport.FrameHandler {
	return func(adu []byte) ([]byte, bool) {
		inst.Lock()
		defer inst.Unlock()
		return handleASCII(inst, adu, unhandled)
	}
}

func handleASCII(inst *model.Instance, adu []byte, unhandled pdu.UnhandledFunc) ([]byte, bool) {
	if len(adu) < ASCIIMinSize || len(adu) > ASCIIMaxSize {
		return nil, false
	}
	// Size-plausible: count it before the frame-shape and integrity checks.
	inst.IncCounter(model.CntBusMsg)
	flags := recvFlags(inst)

	if adu[0] != asciiStart || adu[len(adu)-2] != asciiCR || adu[len(adu)-1] != inst.ASCIIDelimiter() {
		addRecvEvent(inst, flags)
		return nil, false
	}
	hexBody := adu[1 : len(adu)-2]
	if len(hexBody)%2 != 0 || len(hexBody) < 6 {
		addRecvEvent(inst, flags)
		return nil, false
	}

	binLen := len(hexBody) / 2
	bin := make([]byte, binLen)
	if !allHexDigits(hexBody) || !lrc.Decode(bin, hexBody) {
		inst.IncCounter(model.CntBusCommErr)
		addRecvEvent(inst, flags|model.EventRecvCommErr)
		return nil, false
	}

	// LRC before the address filter, same as RTU's CRC ordering.
	payload, receivedLRC := bin[:binLen-1], bin[binLen-1]
	if lrc.Checksum(payload) != receivedLRC {
		inst.IncCounter(model.CntBusCommErr)
		addRecvEvent(inst, flags|model.EventRecvCommErr)
		return nil, false
	}

	addr := payload[0]
	if !acceptAddress(inst, addr) {
		addRecvEvent(inst, flags)
		return nil, false
	}

	if addr == modbus.BroadcastAddress {
		flags |= model.EventRecvBroadcast
	}
	addRecvEvent(inst, flags)

	req := modbus.ProtocolDataUnit{FunctionCode: payload[1], Data: payload[2:]}
	resp, send := dispatch(inst, addr, req, unhandled)
	if !send {
		return nil, false
	}
	return encodeASCII(addr, resp, inst.ASCIIDelimiter()), true
}

func allHexDigits(hex []byte) bool {
	for _, c := range hex {
		if !lrc.IsHexDigit(c) {
			return false
		}
	}
	return true
}

func encodeASCII(addr byte, pdu modbus.ProtocolDataUnit, delim byte) []byte {
	bin := make([]byte, 2+len(pdu.Data)+1)
	bin[0] = addr
	bin[1] = pdu.FunctionCode
	copy(bin[2:], pdu.Data)
	bin[len(bin)-1] = lrc.Checksum(bin[:len(bin)-1])

	out := make([]byte, 1+len(bin)*2+2)
	out[0] = asciiStart
	lrc.Encode(out[1:], bin)
	out[len(out)-2] = asciiCR
	out[len(out)-1] = delim
	return out
}
