// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package persistence provides the physical backing store for
// pointer-bound descriptors (the "Bank"), and the storage backends
// (memory, file, mmap, SQL) that load and flush its raw bytes. It knows
// nothing about coils, registers or files; that addressing is layered on
// top by whoever slices a Bank into RegisterDescriptor.Bytes /
// CoilDescriptor.Ptr ranges.
package persistence

// Bank is a flat, byte-addressable backing store of a fixed size.
type Bank struct {
	data []byte
}

// NewBank allocates a zeroed bank of size bytes.
func NewBank(size int) *Bank {
	return &Bank{data: make([]byte, size)}
}

// NewBankFromBytes wraps an existing slice (e.g. a memory-mapped file) as a Bank.
func NewBankFromBytes(data []byte) *Bank {
	return &Bank{data: data}
}

// Bytes returns the whole backing slice.
func (b *Bank) Bytes() []byte { return b.data }

// Slice returns the length-byte window starting at offset. Callers hand
// this out as a descriptor's Bytes/Ptr target; it aliases the bank.
func (b *Bank) Slice(offset, length int) []byte {
	return b.data[offset : offset+length]
}

// Len reports the bank's size in bytes.
func (b *Bank) Len() int { return len(b.data) }

// Storage persists a Bank's raw bytes.
type Storage interface {
	// Load returns the bank's initial contents, sized to size.
	Load(size int) (*Bank, error)

	// Save writes out the full bank contents.
	Save(bank *Bank) error

	// OnWrite is called after every write that touches the
	// [offset, offset+length) byte range, to support real-time persistence.
	OnWrite(bank *Bank, offset, length int)

	// Close releases any resource (open file, descriptor, connection) held by Load.
	Close() error
}
