// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"encoding/binary"
	"sort"
)

// RegisterType names the wire representation of a register descriptor's value.
type RegisterType int

const (
	RegU8 RegisterType = iota
	RegU16
	RegU32
	RegI32
	RegF32
	RegU64
	RegI64
	RegF64
	// RegBlockU8 is a run of BlockLen bytes, packed two per register.
	RegBlockU8
	// RegBlockU16 is a run of BlockLen 16-bit words, one per register.
	RegBlockU16
)

// RegAccess describes how a register's value is bound for one direction.
type RegAccess int

const (
	RegAccessNone RegAccess = iota
	RegAccessConstant
	RegAccessPointer
	RegAccessFunc
)

// RegisterDescriptor binds one holding/input register (or a contiguous run,
// for the block types) to storage starting at Address.
type RegisterDescriptor struct {
	Address uint16
	Type    RegisterType
	// BlockLen is the element count for RegBlockU8/RegBlockU16; unused otherwise.
	BlockLen int

	ReadAccess  RegAccess
	WriteAccess RegAccess

	// ConstBytes holds the big-endian encoded constant value, sized Size()*2.
	ConstBytes []byte
	// Bytes is the big-endian backing storage for RegAccessPointer, sized Size()*2.
	Bytes []byte

	// ReadFn/WriteFn exchange the full big-endian encoded value, sized Size()*2.
	ReadFn  func() ([]byte, Status)
	WriteFn func([]byte) Status

	ReadLock  func() bool
	WriteLock func() bool
	// WriteLockOverride, if it returns true, lets a write through even when WriteLock is held.
	WriteLockOverride func() bool

	// AllowPartialWrite permits writes that start mid-descriptor or carry
	// fewer words than the descriptor spans. Without it, a multi-word
	// scalar only accepts a complete, aligned value.
	AllowPartialWrite bool

	PostWrite func()

	// SwapWord16, when true, swaps the 16-bit word order of multi-word scalar
	// values on the wire. It is set per descriptor.
	SwapWord16 bool
}

// Size returns the descriptor's span in 16-bit registers.
func (d *RegisterDescriptor) Size() int {
	switch d.Type {
	case RegU8, RegU16:
		return 1
	case RegU32, RegI32, RegF32:
		return 2
	case RegU64, RegI64, RegF64:
		return 4
	case RegBlockU8:
		return (d.BlockLen + 1) / 2
	case RegBlockU16:
		return d.BlockLen
	default:
		return 0
	}
}

// RegisterTable is a set of register descriptors kept sorted by Address,
// matched by address span (so a multi-register descriptor answers any
// address that falls within it).
type RegisterTable struct {
	descs []*RegisterDescriptor
}

// NewRegisterTable builds a table from descriptors, sorting them by address.
func NewRegisterTable(descs []*RegisterDescriptor) *RegisterTable {
	sorted := make([]*RegisterDescriptor, len(descs))
	copy(sorted, descs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Address < sorted[j].Address })
	return &RegisterTable{descs: sorted}
}

func (t *RegisterTable) Len() int { return len(t.descs) }

// Find returns the descriptor spanning address and the 0-based word offset
// of address within it, or (nil, 0) if nothing is bound there.
func (t *RegisterTable) Find(address uint16) (*RegisterDescriptor, int) {
	n := len(t.descs)
	if n == 0 {
		return nil, 0
	}
	search := func(d *RegisterDescriptor) bool {
		span := d.Size()
		return int(address) >= int(d.Address) && int(address) < int(d.Address)+span
	}
	if n > bsearchThreshold {
		lo, hi := 0, n
		for lo < hi {
			mid := (lo + hi) / 2
			if t.descs[mid].Address <= address {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		// lo is the first descriptor whose Address > address; the candidate is lo-1.
		if lo > 0 && search(t.descs[lo-1]) {
			d := t.descs[lo-1]
			return d, int(address) - int(d.Address)
		}
		return nil, 0
	}
	for _, d := range t.descs {
		if search(d) {
			return d, int(address) - int(d.Address)
		}
	}
	return nil, 0
}

// RegisterOp is the outcome of a register read or write.
type RegisterOp struct {
	Words  []uint16
	N      int
	Status Status
}

func wordsFromBytes(raw []byte, swap bool) []uint16 {
	n := len(raw) / 2
	words := make([]uint16, n)
	for i := 0; i < n; i++ {
		words[i] = binary.BigEndian.Uint16(raw[i*2:])
	}
	if swap && n > 1 {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			words[i], words[j] = words[j], words[i]
		}
	}
	return words
}

func bytesFromWords(words []uint16, swap bool) []byte {
	n := len(words)
	ordered := words
	if swap && n > 1 {
		ordered = make([]uint16, n)
		copy(ordered, words)
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}
	raw := make([]byte, n*2)
	for i, w := range ordered {
		binary.BigEndian.PutUint16(raw[i*2:], w)
	}
	return raw
}

// ReadRegisterWords reads up to `want` registers from d starting at wordOffset.
func ReadRegisterWords(d *RegisterDescriptor, wordOffset, want int) RegisterOp {
	if d.ReadLock != nil && d.ReadLock() {
		return RegisterOp{Status: StatusIllegalDataAddress}
	}

	var raw []byte
	switch d.ReadAccess {
	case RegAccessConstant:
		raw = d.ConstBytes
	case RegAccessPointer:
		raw = d.Bytes
	case RegAccessFunc:
		if d.ReadFn == nil {
			return RegisterOp{Status: StatusDeviceFailure}
		}
		v, st := d.ReadFn()
		if st != StatusOK {
			return RegisterOp{Status: st}
		}
		raw = v
	default:
		return RegisterOp{Status: StatusIllegalDataAddress}
	}

	words := wordsFromBytes(raw, d.SwapWord16)
	if wordOffset >= len(words) {
		return RegisterOp{Status: StatusDeviceFailure}
	}
	avail := words[wordOffset:]
	n := want
	if n > len(avail) {
		n = len(avail)
	}
	return RegisterOp{Words: avail[:n], N: n, Status: StatusOK}
}

// RegisterWriteAllowed reports whether any part of d currently accepts writes.
func RegisterWriteAllowed(d *RegisterDescriptor) bool {
	if d == nil || d.WriteAccess == RegAccessNone {
		return false
	}
	if d.WriteLock != nil && d.WriteLock() {
		if d.WriteLockOverride != nil && d.WriteLockOverride() {
			return true
		}
		return false
	}
	return true
}

// RegisterWriteSpan validates a write against d that starts wordOffset
// words into the descriptor with `remaining` words of request data left,
// and returns how many of those words the write would consume. 0 means
// the write is not allowed: no write access, locked, or a partial write
// of a multi-word scalar without AllowPartialWrite set. Block descriptors
// are word-granular and never need the partial flag.
func RegisterWriteSpan(d *RegisterDescriptor, wordOffset, remaining int) int {
	if !RegisterWriteAllowed(d) || remaining <= 0 {
		return 0
	}
	size := d.Size()
	if wordOffset >= size {
		return 0
	}
	switch d.Type {
	case RegBlockU8, RegBlockU16:
		span := size - wordOffset
		if span > remaining {
			span = remaining
		}
		return span
	default:
		if wordOffset != 0 || remaining < size {
			if !d.AllowPartialWrite {
				return 0
			}
			span := size - wordOffset
			if span > remaining {
				span = remaining
			}
			return span
		}
		return size
	}
}

// WriteRegisterWords writes words into d starting at wordOffset. Writing
// a sub-range of a pointer-backed descriptor updates only that range;
// function-backed descriptors require a full-span write.
func WriteRegisterWords(d *RegisterDescriptor, wordOffset int, words []uint16) RegisterOp {
	size := d.Size()
	if wordOffset+len(words) > size {
		return RegisterOp{Status: StatusIllegalDataAddress}
	}

	switch d.WriteAccess {
	case RegAccessPointer:
		if d.Bytes == nil {
			return RegisterOp{Status: StatusDeviceFailure}
		}
		current := wordsFromBytes(d.Bytes, d.SwapWord16)
		copy(current[wordOffset:], words)
		copy(d.Bytes, bytesFromWords(current, d.SwapWord16))
		return RegisterOp{N: len(words), Status: StatusOK}
	case RegAccessFunc:
		if d.WriteFn == nil {
			return RegisterOp{Status: StatusDeviceFailure}
		}
		if wordOffset != 0 || len(words) != size {
			// Writing partial to a function doesn't make sense: a callback
			// can only be handed the complete encoded value.
			return RegisterOp{Status: StatusDeviceFailure}
		}
		st := d.WriteFn(bytesFromWords(words, d.SwapWord16))
		if st != StatusOK {
			return RegisterOp{Status: st}
		}
		return RegisterOp{N: len(words), Status: StatusOK}
	default:
		return RegisterOp{Status: StatusDeviceFailure}
	}
}
