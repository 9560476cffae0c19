// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pdu

import "github.com/ot-systems/mbslave/internal/slave/model"

// readExceptionStatus implements function code 0x07. It exists only when
// the instance was configured with a ReadExceptionStatus callback; devices
// that don't model an exception status byte simply don't support the
// function.
func readExceptionStatus(inst *model.Instance, req []byte) ([]byte, model.Status) {
	if len(req) != 0 {
		return nil, model.StatusIllegalDataValue
	}
	if inst.Serial.ReadExceptionStatus == nil {
		return nil, model.StatusIllegalFunction
	}
	return []byte{inst.Serial.ReadExceptionStatus()}, model.StatusOK
}
