// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pdu

import (
	"encoding/binary"

	"github.com/ot-systems/mbslave/internal/slave/model"
)

// fileRecordRefType is the only reference type value the wire format defines.
const fileRecordRefType = 0x06

const (
	// Fixed sub-request sizes: reftype(1) + file_no(2) + rec_no(2) + rec_len(2),
	// plus the record data itself on the write side.
	fileSubReqSize      = 7
	fileWriteSubMinSize = fileSubReqSize + 2

	// Byte-count field limits keeping request and response inside one PDU.
	fileReadMaxByteCount  = 0xF5
	fileWriteMaxByteCount = 0xFB

	// maxFileRecordNo is the highest record number the standard permits;
	// Instance.AllowExtFileRecs lifts it to the full 16-bit range.
	maxFileRecordNo = 0x270F
)

// readFileRecord implements function code 0x14. The request carries one or
// more fixed 7-byte sub-requests; each is answered by its own sub-response.
// All sub-requests are validated before the first one is answered.
func readFileRecord(inst *model.Instance, req []byte) ([]byte, model.Status) {
	if len(req) < 1+fileSubReqSize {
		return nil, model.StatusIllegalDataValue
	}
	byteCount := int(req[0])
	if byteCount < fileSubReqSize || byteCount > fileReadMaxByteCount ||
		byteCount != len(req)-1 || byteCount%fileSubReqSize != 0 {
		return nil, model.StatusIllegalDataValue
	}

	respByteCount := 0
	for sub := req[1:]; len(sub) > 0; sub = sub[fileSubReqSize:] {
		_, _, recordLength, st := parseFileSubReq(inst, sub)
		if st != model.StatusOK {
			return nil, st
		}
		respByteCount += 2 + int(recordLength)*2
	}
	if respByteCount > fileReadMaxByteCount {
		return nil, model.StatusIllegalDataValue
	}

	out := make([]byte, 1, 1+respByteCount)
	out[0] = byte(respByteCount)
	for sub := req[1:]; len(sub) > 0; sub = sub[fileSubReqSize:] {
		fileNo := binary.BigEndian.Uint16(sub[1:3])
		recordNo := binary.BigEndian.Uint16(sub[3:5])
		recordLength := binary.BigEndian.Uint16(sub[5:7])

		file := inst.Files.Find(fileNo)
		if file == nil {
			return nil, model.StatusIllegalDataAddress
		}

		words := make([]uint16, recordLength)
		switch model.ReadFileRecord(file, recordNo, recordLength, words) {
		case model.FileReadIllegalAddr:
			return nil, model.StatusIllegalDataAddress
		case model.FileReadDeviceErr:
			return nil, model.StatusDeviceFailure
		}

		out = append(out, byte(recordLength*2+1), fileRecordRefType)
		for _, w := range words {
			out = append(out, byte(w>>8), byte(w))
		}
	}
	return out, model.StatusOK
}

// writeFileRecord implements function code 0x15. Every addressed register
// across all sub-requests is validated writable before any write is
// applied, then the request is echoed back verbatim as the response.
func writeFileRecord(inst *model.Instance, req []byte) ([]byte, model.Status) {
	if len(req) < 1+fileWriteSubMinSize {
		return nil, model.StatusIllegalDataValue
	}
	byteCount := int(req[0])
	if byteCount < fileWriteSubMinSize || byteCount > fileWriteMaxByteCount || byteCount != len(req)-1 {
		return nil, model.StatusIllegalDataValue
	}

	type subReq struct {
		file     *model.FileDescriptor
		recordNo uint16
		words    []uint16
	}
	var subs []subReq

	for sub := req[1:]; len(sub) > 0; {
		if len(sub) < fileWriteSubMinSize {
			return nil, model.StatusIllegalDataValue
		}
		fileNo, recordNo, recordLength, st := parseFileSubReq(inst, sub)
		if st != model.StatusOK {
			return nil, st
		}
		if int(recordLength)*2 > len(sub)-fileSubReqSize {
			return nil, model.StatusIllegalDataValue
		}
		sub = sub[fileSubReqSize:]

		file := inst.Files.Find(fileNo)
		if file == nil {
			return nil, model.StatusIllegalDataAddress
		}
		if !model.FileWriteAllowed(file, recordNo, recordLength) {
			return nil, model.StatusIllegalDataAddress
		}

		words := wordsFromWireBytes(sub[:recordLength*2])
		sub = sub[recordLength*2:]
		subs = append(subs, subReq{file: file, recordNo: recordNo, words: words})
	}

	for _, s := range subs {
		if st := model.WriteFileRecord(s.file, s.recordNo, s.words); st != model.StatusOK {
			return nil, st
		}
	}
	if inst.CommitRegsWrite != nil {
		inst.CommitRegsWrite()
	}

	resp := make([]byte, len(req))
	copy(resp, req)
	return resp, model.StatusOK
}

// parseFileSubReq validates the fixed 7-byte head of one sub-request and
// returns its fields. sub must be at least fileSubReqSize long.
func parseFileSubReq(inst *model.Instance, sub []byte) (fileNo, recordNo, recordLength uint16, st model.Status) {
	if sub[0] != fileRecordRefType {
		return 0, 0, 0, model.StatusIllegalDataValue
	}
	fileNo = binary.BigEndian.Uint16(sub[1:3])
	recordNo = binary.BigEndian.Uint16(sub[3:5])
	recordLength = binary.BigEndian.Uint16(sub[5:7])

	if fileNo == 0 {
		return 0, 0, 0, model.StatusIllegalDataAddress
	}
	if !inst.AllowExtFileRecs && recordNo > maxFileRecordNo {
		return 0, 0, 0, model.StatusIllegalDataAddress
	}
	if recordLength == 0 {
		return 0, 0, 0, model.StatusIllegalDataValue
	}
	return fileNo, recordNo, recordLength, model.StatusOK
}
