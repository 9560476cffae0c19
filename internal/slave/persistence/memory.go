// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

// MemoryStorage is a no-op storage: the bank lives only in process memory
// and is lost on restart.
type MemoryStorage struct{}

func NewMemoryStorage() *MemoryStorage { return &MemoryStorage{} }

func (ms *MemoryStorage) Load(size int) (*Bank, error) { return NewBank(size), nil }

func (ms *MemoryStorage) Save(bank *Bank) error { return nil }

func (ms *MemoryStorage) OnWrite(bank *Bank, offset, length int) {}

func (ms *MemoryStorage) Close() error { return nil }
