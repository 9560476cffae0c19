// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package frame implements the three Modbus ADU framing layers (RTU,
// ASCII, TCP) that sit on top of package pdu: each wraps the PDU
// dispatcher with address filtering, an integrity check, broadcast
// suppression and the bus-level counters and communication-event log
// that the framing layer, not the dispatcher, is responsible for.
//
// Each exported constructor returns a transport.FrameHandler bound to one
// model.Instance; the returned handler takes inst's lock for the
// duration of a call, so the same instance can safely be served over
// several transports (RTU, ASCII, TCP) concurrently.
package frame

import (
	"github.com/ot-systems/mbslave/internal/slave/model"
	"github.com/ot-systems/mbslave/internal/slave/pdu"
	"github.com/ot-systems/mbslave/modbus"
)

// acceptAddress reports whether addr is one inst answers requests
// addressed to: its own configured slave/unit address, the broadcast
// address, or - if enabled - the default-response address 0xF8.
func acceptAddress(inst *model.Instance, addr byte) bool {
	if addr == modbus.BroadcastAddress || addr == inst.Serial.SlaveAddr {
		return true
	}
	return inst.Serial.EnableDefResp && addr == modbus.DefaultRespAddress
}

// dispatch runs req through the PDU dispatcher and applies the no-reply
// rules: a broadcast is always processed but never answered, and any
// dispatcher-suppressed reply (listen-only mode) counts as a transaction
// this server received but chose not to answer.
func dispatch(inst *model.Instance, addr byte, req modbus.ProtocolDataUnit, unhandled pdu.UnhandledFunc) (resp modbus.ProtocolDataUnit, send bool) {
	resp, ok := pdu.Handle(inst, req, unhandled)
	if !ok || addr == modbus.BroadcastAddress {
		inst.IncCounter(model.CntNoResp)
		return modbus.ProtocolDataUnit{}, false
	}
	return resp, true
}

// recvFlags seeds the "frame received" event flags for the current
// instance state. The listen-mode bit records that this traffic arrived
// while the instance itself was not answering requests.
func recvFlags(inst *model.Instance) byte {
	if inst.IsListenOnly() {
		return model.EventRecvListenMode
	}
	return 0
}

// addRecvEvent logs a receive event carrying flags. An unremarkable
// receive (no flags) is not logged: only communication errors, overheard
// listen-mode traffic and broadcasts leave a mark in the event log.
func addRecvEvent(inst *model.Instance, flags byte) {
	if flags != 0 {
		inst.AddEvent(model.EventIsRecv | flags)
	}
}
