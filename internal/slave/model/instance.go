// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package model holds the descriptor-based Modbus data model: coils,
// discrete inputs, holding/input registers and extended-memory files,
// each bound to storage through a constant value, a backing pointer, or
// a callback, with optional read/write locks and post-write hooks. A
// single Instance bundles these tables with the serial-line diagnostic
// state (counters, comm event log, listen-only mode) that the protocol
// dispatcher in package pdu operates on.
package model

import "sync"

// SerialConfig holds the settings specific to serial-line (RTU/ASCII) framing.
type SerialConfig struct {
	SlaveAddr     byte
	EnableDefResp bool

	ReadExceptionStatus func() byte
	ReadDiagnosticsReg  func() uint16
	ResetDiagnosticsReg func()
	RequestRestart      func()
}

// Instance bundles a data model with the serial-line diagnostic state
// required to answer the Modbus diagnostic and communication-log
// function codes. A nil table means the instance doesn't implement the
// corresponding function codes at all: the dispatcher answers them with
// an illegal-function exception (or hands them to the fallback handler)
// instead of an addressing error.
type Instance struct {
	mu sync.RWMutex

	Coils          *CoilTable
	DiscreteInputs *CoilTable
	HoldingRegs    *RegisterTable
	InputRegs      *RegisterTable
	Files          *FileTable

	// AllowExtFileRecs lifts the standard 0x270F record-number ceiling of
	// the file-record functions to the full 16-bit range.
	AllowExtFileRecs bool

	// CommitCoilsWrite/CommitRegsWrite run once per request after every
	// coil/register write in that request has been applied.
	CommitCoilsWrite func()
	CommitRegsWrite  func()

	Serial SerialConfig

	isListenOnly bool
	status       uint16

	commEventCounter uint16
	eventLog         EventLog

	counters Counters

	asciiDelimiter byte
}

// NewInstance builds an Instance from descriptor tables. A nil table
// leaves the corresponding function codes unimplemented.
func NewInstance(coils, discreteInputs *CoilTable, holdingRegs, inputRegs *RegisterTable, files *FileTable) *Instance {
	return &Instance{
		Coils:          coils,
		DiscreteInputs: discreteInputs,
		HoldingRegs:    holdingRegs,
		InputRegs:      inputRegs,
		Files:          files,
		asciiDelimiter: '\n',
	}
}

// Lock/Unlock/RLock/RUnlock expose the instance-wide lock that guards all
// mutable diagnostic state and serializes access to the data model across
// concurrent transports (RTU, ASCII, TCP can all be live at once).
func (inst *Instance) Lock()    { inst.mu.Lock() }
func (inst *Instance) Unlock()  { inst.mu.Unlock() }
func (inst *Instance) RLock()   { inst.mu.RLock() }
func (inst *Instance) RUnlock() { inst.mu.RUnlock() }

func (inst *Instance) IsListenOnly() bool       { return inst.isListenOnly }
func (inst *Instance) SetListenOnly(v bool)     { inst.isListenOnly = v }
func (inst *Instance) Status() uint16           { return inst.status }
func (inst *Instance) SetStatus(v uint16)       { inst.status = v }
func (inst *Instance) CommEventCounter() uint16 { return inst.commEventCounter }
func (inst *Instance) IncCommEventCounter()     { inst.commEventCounter++ }

func (inst *Instance) AddEvent(event byte)       { inst.eventLog.Add(event) }
func (inst *Instance) EventLogCount() int        { return inst.eventLog.Count() }
func (inst *Instance) NewestEvents(n int) []byte { return inst.eventLog.Newest(n) }
func (inst *Instance) ClearEventLog()            { inst.eventLog.Clear() }

func (inst *Instance) Counter(c Counter) uint16 { return inst.counters.Get(c) }
func (inst *Instance) IncCounter(c Counter)     { inst.counters.Inc(c) }
func (inst *Instance) ResetCounter(c Counter)   { inst.counters.Reset(c) }
func (inst *Instance) ResetCounters() {
	inst.counters.ResetAll()
	inst.commEventCounter = 0
}

func (inst *Instance) ASCIIDelimiter() byte     { return inst.asciiDelimiter }
func (inst *Instance) SetASCIIDelimiter(b byte) { inst.asciiDelimiter = b }
