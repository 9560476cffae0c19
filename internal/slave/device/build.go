// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package device wires a config.Config into a live model.Instance: it
// opens one persistence.Storage per configured table, binds its Bank into
// descriptors, and hangs the storage's OnWrite behind the post-write hooks
// the PDU dispatcher already calls.
package device

import (
	"fmt"

	"github.com/ot-systems/mbslave/internal/config"
	"github.com/ot-systems/mbslave/internal/slave/model"
	"github.com/ot-systems/mbslave/internal/slave/persistence"
)

// Device owns the open storages backing a model.Instance, so they can be
// closed together on shutdown.
type Device struct {
	Instance *model.Instance

	storages []persistence.Storage
}

// Close calls Close on every storage backing the device and returns the
// first error. It does not call Save; committed writes have already
// reached storage through OnWrite.
func (d *Device) Close() error {
	var firstErr error
	for _, s := range d.storages {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Build constructs a model.Instance from cfg, opening each table's
// configured persistence backend.
func Build(cfg *config.Config) (*Device, error) {
	d := &Device{}

	coils, coilBank, coilStore, err := buildCoils(d, "coils", cfg.Model.Coils, true)
	if err != nil {
		return nil, fmt.Errorf("coils: %w", err)
	}
	discrete, _, _, err := buildCoils(d, "discrete_inputs", cfg.Model.DiscreteInputs, false)
	if err != nil {
		return nil, fmt.Errorf("discrete inputs: %w", err)
	}
	holding, holdingBank, holdingStore, err := buildRegisters(d, "holding_registers", cfg.Model.HoldingRegisters, true)
	if err != nil {
		return nil, fmt.Errorf("holding registers: %w", err)
	}
	input, _, _, err := buildRegisters(d, "input_registers", cfg.Model.InputRegisters, false)
	if err != nil {
		return nil, fmt.Errorf("input registers: %w", err)
	}

	type fileBacking struct {
		bank  *persistence.Bank
		store persistence.Storage
	}
	var fileDescs []*model.FileDescriptor
	var fileBackings []fileBacking
	for _, fc := range cfg.Model.Files {
		name := fmt.Sprintf("file_%d", fc.FileNumber)
		store, err := openStorage(fc.Persistence, name)
		if err != nil {
			return nil, fmt.Errorf("file %d: %w", fc.FileNumber, err)
		}
		d.storages = append(d.storages, store)

		bank, err := store.Load(fc.Records * 2)
		if err != nil {
			return nil, fmt.Errorf("file %d: %w", fc.FileNumber, err)
		}
		records := model.NewRegisterTable([]*model.RegisterDescriptor{{
			Address:     0,
			Type:        model.RegBlockU16,
			BlockLen:    fc.Records,
			ReadAccess:  model.RegAccessPointer,
			WriteAccess: model.RegAccessPointer,
			Bytes:       bank.Bytes(),
		}})
		fileDescs = append(fileDescs, &model.FileDescriptor{FileNumber: fc.FileNumber, Records: records})
		fileBackings = append(fileBackings, fileBacking{bank: bank, store: store})
	}

	var files *model.FileTable
	if len(fileDescs) > 0 {
		files = model.NewFileTable(fileDescs)
	}

	inst := model.NewInstance(coils, discrete, holding, input, files)
	inst.Serial.SlaveAddr = cfg.Slave.Address
	inst.Serial.EnableDefResp = cfg.Slave.EnableDefResp
	inst.AllowExtFileRecs = cfg.Slave.AllowExtFileRecords

	if coilStore != nil {
		inst.CommitCoilsWrite = func() { coilStore.OnWrite(coilBank, 0, coilBank.Len()) }
	}
	regBackings := fileBackings
	inst.CommitRegsWrite = func() {
		if holdingStore != nil {
			holdingStore.OnWrite(holdingBank, 0, holdingBank.Len())
		}
		for _, fb := range regBackings {
			fb.store.OnWrite(fb.bank, 0, fb.bank.Len())
		}
	}

	d.Instance = inst
	return d, nil
}

// buildCoils returns a nil table for an unconfigured (zero-count) block,
// which leaves the matching function codes unimplemented on the instance.
func buildCoils(d *Device, name string, tc config.TableConfig, writable bool) (*model.CoilTable, *persistence.Bank, persistence.Storage, error) {
	if tc.Count == 0 {
		return nil, nil, nil, nil
	}
	store, err := openStorage(tc.Persistence, name)
	if err != nil {
		return nil, nil, nil, err
	}
	d.storages = append(d.storages, store)

	bank, err := store.Load((tc.Count + 7) / 8)
	if err != nil {
		return nil, nil, nil, err
	}

	descs := make([]*model.CoilDescriptor, tc.Count)
	for i := 0; i < tc.Count; i++ {
		byteOff := i / 8
		bit := uint8(i % 8)
		write := model.BitAccessNone
		if writable {
			write = model.BitAccessPointer
		}
		descs[i] = &model.CoilDescriptor{
			Address:     uint16(i),
			ReadAccess:  model.BitAccessPointer,
			WriteAccess: write,
			Ptr:         &bank.Bytes()[byteOff],
			BitIndex:    bit,
		}
	}
	return model.NewCoilTable(descs), bank, store, nil
}

func buildRegisters(d *Device, name string, tc config.TableConfig, writable bool) (*model.RegisterTable, *persistence.Bank, persistence.Storage, error) {
	if tc.Count == 0 {
		return nil, nil, nil, nil
	}
	store, err := openStorage(tc.Persistence, name)
	if err != nil {
		return nil, nil, nil, err
	}
	d.storages = append(d.storages, store)

	bank, err := store.Load(tc.Count * 2)
	if err != nil {
		return nil, nil, nil, err
	}

	write := model.RegAccessNone
	if writable {
		write = model.RegAccessPointer
	}
	descs := []*model.RegisterDescriptor{{
		Address:     0,
		Type:        model.RegBlockU16,
		BlockLen:    tc.Count,
		ReadAccess:  model.RegAccessPointer,
		WriteAccess: write,
		Bytes:       bank.Bytes(),
	}}
	return model.NewRegisterTable(descs), bank, store, nil
}

func openStorage(pc config.PersistenceConfig, name string) (persistence.Storage, error) {
	switch pc.Type {
	case "", "memory":
		return persistence.NewMemoryStorage(), nil
	case "file":
		if pc.Path == "" {
			return nil, fmt.Errorf("%s: file persistence requires a path", name)
		}
		return persistence.NewFileStorage(pc.Path), nil
	case "mmap":
		if pc.Path == "" {
			return nil, fmt.Errorf("%s: mmap persistence requires a path", name)
		}
		return persistence.NewMmapStorage(pc.Path), nil
	case "sql":
		if pc.SQLDriver == "" || pc.SQLDSN == "" {
			return nil, fmt.Errorf("%s: sql persistence requires sql_driver and sql_dsn", name)
		}
		return persistence.NewSQLStorage(pc.SQLDriver, pc.SQLDSN, name), nil
	default:
		return nil, fmt.Errorf("%s: unknown persistence type %q", name, pc.Type)
	}
}
