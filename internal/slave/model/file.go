// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import "sort"

// FileDescriptor binds one extended-memory file number to a register table
// addressed by record number (the record number takes the place of a
// register address within the file).
type FileDescriptor struct {
	FileNumber uint16
	Records    *RegisterTable
}

// FileTable is a set of file descriptors kept sorted by FileNumber.
type FileTable struct {
	descs []*FileDescriptor
}

// NewFileTable builds a table from descriptors, sorting them by file number.
func NewFileTable(descs []*FileDescriptor) *FileTable {
	sorted := make([]*FileDescriptor, len(descs))
	copy(sorted, descs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FileNumber < sorted[j].FileNumber })
	return &FileTable{descs: sorted}
}

// Find looks up the file at fileNo, or nil if none is bound there.
func (t *FileTable) Find(fileNo uint16) *FileDescriptor {
	n := len(t.descs)
	if n == 0 {
		return nil
	}
	if n > bsearchThreshold {
		lo, hi := 0, n
		for lo < hi {
			mid := (lo + hi) / 2
			if t.descs[mid].FileNumber < fileNo {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo < n && t.descs[lo].FileNumber == fileNo {
			return t.descs[lo]
		}
		return nil
	}
	for _, d := range t.descs {
		if d.FileNumber == fileNo {
			return d
		}
	}
	return nil
}

// FileReadStatus is the outcome of reading one sub-request of a file record.
type FileReadStatus int

const (
	FileReadOK FileReadStatus = iota
	FileReadIllegalAddr
	FileReadDeviceErr
)

// ReadFileRecord reads recordLength registers starting at recordNo from
// file. Missing, locked, or no-access records are zero-filled; a plain
// register read zero-fills only unbound addresses and fails on locked or
// no-access ones. A dry run (res == nil) only
// validates that the first record exists. The first missing record fails
// the whole read; a later one is silently zero-padded.
func ReadFileRecord(file *FileDescriptor, recordNo, recordLength uint16, res []uint16) FileReadStatus {
	if d, _ := file.Records.Find(recordNo); d == nil {
		return FileReadIllegalAddr
	}
	if res == nil {
		return FileReadOK
	}

	filled := 0
	for filled < int(recordLength) {
		addr := recordNo + uint16(filled)
		d, offset := file.Records.Find(addr)
		if d == nil {
			res[filled] = 0
			filled++
			continue
		}
		want := int(recordLength) - filled
		op := ReadRegisterWords(d, offset, want)
		if op.Status == StatusIllegalDataAddress {
			res[filled] = 0
			filled++
			continue
		}
		if op.Status != StatusOK || op.N == 0 {
			return FileReadDeviceErr
		}
		copy(res[filled:], op.Words)
		filled += op.N
	}
	return FileReadOK
}

// FileWriteAllowed validates that every register in [recordNo, recordNo+recordLength)
// resolves to a writable descriptor, without writing anything.
func FileWriteAllowed(file *FileDescriptor, recordNo, recordLength uint16) bool {
	checked := 0
	for checked < int(recordLength) {
		addr := recordNo + uint16(checked)
		d, offset := file.Records.Find(addr)
		if d == nil {
			return false
		}
		span := RegisterWriteSpan(d, offset, int(recordLength)-checked)
		if span == 0 {
			return false
		}
		checked += span
	}
	return true
}

// WriteFileRecord writes data into file starting at recordNo. Callers must
// have already validated the whole range with FileWriteAllowed.
func WriteFileRecord(file *FileDescriptor, recordNo uint16, data []uint16) Status {
	written := 0
	for written < len(data) {
		addr := recordNo + uint16(written)
		d, offset := file.Records.Find(addr)
		if d == nil {
			return StatusIllegalDataAddress
		}
		n := d.Size() - offset
		if n > len(data)-written {
			n = len(data) - written
		}
		op := WriteRegisterWords(d, offset, data[written:written+n])
		if op.Status != StatusOK {
			return op.Status
		}
		if d.PostWrite != nil {
			d.PostWrite()
		}
		written += n
	}
	return StatusOK
}
