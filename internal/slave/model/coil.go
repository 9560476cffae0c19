// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import "sort"

// bsearchThreshold is the coil/register/file count above which Find uses
// binary search instead of a linear scan. Below it, a linear scan over a
// small sorted slice outperforms the overhead of binary search.
const bsearchThreshold = 16

// BitAccess describes how a single coil (or discrete input) bit is bound.
type BitAccess int

const (
	// BitAccessNone means the direction is unsupported.
	BitAccessNone BitAccess = iota
	// BitAccessConstant returns/accepts a fixed value.
	BitAccessConstant
	// BitAccessPointer reads/writes a single bit of a backing byte.
	BitAccessPointer
	// BitAccessFunc reads/writes via a callback.
	BitAccessFunc
)

// CoilDescriptor binds one coil or discrete input address to storage.
type CoilDescriptor struct {
	Address uint16

	ReadAccess  BitAccess
	WriteAccess BitAccess

	ConstValue bool

	// Ptr/BitIndex are used when ReadAccess/WriteAccess is BitAccessPointer.
	// BitIndex must be in [0,7]; it addresses one bit of *Ptr.
	Ptr      *byte
	BitIndex uint8

	ReadFn  func() bool
	WriteFn func(bool)

	// ReadLock/WriteLock, if set, gate access dynamically (e.g. a safety interlock).
	ReadLock  func() bool
	WriteLock func() bool

	// PostWrite runs after a successful write, before the batch commit hook.
	PostWrite func()
}

// CoilReadResult is the outcome of reading a single coil.
type CoilReadResult int

const (
	CoilReadOff CoilReadResult = iota
	CoilReadOn
	CoilReadLocked
	CoilReadNoAccess
	CoilReadDevFail
)

// CoilTable is a set of coil descriptors kept sorted by Address.
type CoilTable struct {
	descs []*CoilDescriptor
}

// NewCoilTable builds a table from descriptors, sorting them by address.
func NewCoilTable(descs []*CoilDescriptor) *CoilTable {
	sorted := make([]*CoilDescriptor, len(descs))
	copy(sorted, descs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Address < sorted[j].Address })
	return &CoilTable{descs: sorted}
}

// Find looks up the descriptor at address, or nil if none is bound there.
func (t *CoilTable) Find(address uint16) *CoilDescriptor {
	n := len(t.descs)
	if n == 0 {
		return nil
	}
	if n > bsearchThreshold {
		lo, hi := 0, n
		for lo < hi {
			mid := (lo + hi) / 2
			if t.descs[mid].Address < address {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo < n && t.descs[lo].Address == address {
			return t.descs[lo]
		}
		return nil
	}
	for _, d := range t.descs {
		if d.Address == address {
			return d
		}
	}
	return nil
}

// Len reports the number of bound coils.
func (t *CoilTable) Len() int { return len(t.descs) }

// ReadCoil evaluates a coil's current bit value.
func ReadCoil(c *CoilDescriptor) CoilReadResult {
	if c.ReadLock != nil && c.ReadLock() {
		return CoilReadLocked
	}
	switch c.ReadAccess {
	case BitAccessConstant:
		if c.ConstValue {
			return CoilReadOn
		}
		return CoilReadOff
	case BitAccessPointer:
		if c.Ptr == nil || c.BitIndex > 7 {
			return CoilReadDevFail
		}
		if (*c.Ptr>>c.BitIndex)&1 != 0 {
			return CoilReadOn
		}
		return CoilReadOff
	case BitAccessFunc:
		if c.ReadFn == nil {
			return CoilReadDevFail
		}
		if c.ReadFn() {
			return CoilReadOn
		}
		return CoilReadOff
	default:
		return CoilReadNoAccess
	}
}

// CoilWriteAllowed reports whether c currently accepts writes.
func CoilWriteAllowed(c *CoilDescriptor) bool {
	if c == nil {
		return false
	}
	if c.WriteAccess == BitAccessNone {
		return false
	}
	if c.WriteLock != nil && c.WriteLock() {
		return false
	}
	return true
}

// WriteCoil applies value to c. Callers must have already checked CoilWriteAllowed.
func WriteCoil(c *CoilDescriptor, value bool) Status {
	switch c.WriteAccess {
	case BitAccessPointer:
		if c.Ptr == nil || c.BitIndex > 7 {
			return StatusDeviceFailure
		}
		if value {
			*c.Ptr |= 1 << c.BitIndex
		} else {
			*c.Ptr &^= 1 << c.BitIndex
		}
		return StatusOK
	case BitAccessFunc:
		if c.WriteFn == nil {
			return StatusDeviceFailure
		}
		c.WriteFn(value)
		return StatusOK
	default:
		return StatusDeviceFailure
	}
}
