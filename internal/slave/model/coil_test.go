// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import "testing"

func TestCoilTableFindLinearAndBinary(t *testing.T) {
	// 20 descriptors push Find past bsearchThreshold (16) onto the
	// binary-search branch; a 5-descriptor table built from the same
	// descriptors stays on the linear-scan branch.
	var descs []*CoilDescriptor
	for i := uint16(0); i < 20; i++ {
		b := byte(0)
		descs = append(descs, &CoilDescriptor{
			Address:     i * 2,
			ReadAccess:  BitAccessPointer,
			WriteAccess: BitAccessPointer,
			Ptr:         &b,
		})
	}
	table := NewCoilTable(descs)

	if d := table.Find(6); d == nil || d.Address != 6 {
		t.Fatalf("expected to find descriptor at address 6")
	}
	if d := table.Find(7); d != nil {
		t.Fatalf("expected no descriptor at odd address 7")
	}
	if table.Len() != 20 {
		t.Fatalf("expected 20 descriptors, got %d", table.Len())
	}

	small := NewCoilTable(descs[:5])
	if d := small.Find(6); d == nil || d.Address != 6 {
		t.Fatalf("expected linear scan to find descriptor at address 6")
	}
	if d := small.Find(7); d != nil {
		t.Fatalf("expected linear scan to find no descriptor at odd address 7")
	}
}

func TestReadWriteCoilPointer(t *testing.T) {
	var backing byte
	d := &CoilDescriptor{
		ReadAccess:  BitAccessPointer,
		WriteAccess: BitAccessPointer,
		Ptr:         &backing,
		BitIndex:    3,
	}

	if ReadCoil(d) != CoilReadOff {
		t.Fatalf("expected coil initially off")
	}
	if st := WriteCoil(d, true); st != StatusOK {
		t.Fatalf("write failed: %v", st)
	}
	if backing != 1<<3 {
		t.Fatalf("expected bit 3 set, got %08b", backing)
	}
	if ReadCoil(d) != CoilReadOn {
		t.Fatalf("expected coil on after write")
	}
	if st := WriteCoil(d, false); st != StatusOK {
		t.Fatalf("write failed: %v", st)
	}
	if backing != 0 {
		t.Fatalf("expected bit 3 cleared, got %08b", backing)
	}
}

func TestCoilWriteAllowedRespectsLock(t *testing.T) {
	locked := true
	d := &CoilDescriptor{
		WriteAccess: BitAccessPointer,
		WriteLock:   func() bool { return locked },
	}
	if CoilWriteAllowed(d) {
		t.Fatalf("expected write to be disallowed while locked")
	}
	locked = false
	if !CoilWriteAllowed(d) {
		t.Fatalf("expected write to be allowed once unlocked")
	}
}

func TestCoilWriteAllowedNilDescriptor(t *testing.T) {
	if CoilWriteAllowed(nil) {
		t.Fatalf("expected nil descriptor to be unwritable")
	}
}

func TestReadCoilConstant(t *testing.T) {
	d := &CoilDescriptor{ReadAccess: BitAccessConstant, ConstValue: true}
	if ReadCoil(d) != CoilReadOn {
		t.Fatalf("expected constant-true coil to read on")
	}
}

func TestReadCoilFunc(t *testing.T) {
	calls := 0
	d := &CoilDescriptor{
		ReadAccess: BitAccessFunc,
		ReadFn:     func() bool { calls++; return calls%2 == 1 },
	}
	if ReadCoil(d) != CoilReadOn {
		t.Fatalf("expected first read to be on")
	}
	if ReadCoil(d) != CoilReadOff {
		t.Fatalf("expected second read to be off")
	}
}

func TestReadCoilNoAccess(t *testing.T) {
	d := &CoilDescriptor{}
	if ReadCoil(d) != CoilReadNoAccess {
		t.Fatalf("expected default access mode to report no access")
	}
}
