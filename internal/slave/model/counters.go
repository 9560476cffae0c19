// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

// Counter names one of the diagnostic counters a Modbus server keeps.
type Counter int

const (
	CntBusMsg Counter = iota
	CntBusCommErr
	CntException
	CntSlaveMsg
	CntNoResp
	CntNAK
	CntBusy
	CntBusCharOverrun
	cntNum
)

// Counters holds the diagnostic counters exposed via function code 0x08
// sub-functions 0x0B-0x12, reset as a group by 0x0A and 0x01.
type Counters struct {
	v [cntNum]uint16
}

// Inc increments c by one, wrapping per the 16-bit wire width.
func (cs *Counters) Inc(c Counter) {
	cs.v[c]++
}

// Get returns the current value of c.
func (cs *Counters) Get(c Counter) uint16 {
	return cs.v[c]
}

// Reset zeroes a single counter (diagnostic sub-function 0x14).
func (cs *Counters) Reset(c Counter) {
	cs.v[c] = 0
}

// ResetAll zeroes every counter (diagnostic sub-functions 0x0A and 0x01).
func (cs *Counters) ResetAll() {
	for i := range cs.v {
		cs.v[i] = 0
	}
}
