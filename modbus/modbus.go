// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package modbus defines the transport-independent Modbus Protocol Data
// Unit and the function/exception code tables shared by every framing
// layer (RTU, ASCII, TCP) and by the PDU dispatcher.
package modbus

// ProtocolDataUnit is the function code plus its payload, independent of
// whatever ADU framing (RTU/ASCII/TCP) carried it.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// ErrorFlag is or'd into a request's function code to mark an exception response.
const ErrorFlag = 0x80

// BroadcastAddress is the reserved slave/unit address meaning "every
// device on the line"; a server processes the request but never replies.
const BroadcastAddress = 0x00

// DefaultRespAddress is the address an instance may optionally answer to
// in addition to its own, for masters that don't know the real address yet.
const DefaultRespAddress = 0xF8

// Function codes.
const (
	FuncCodeReadCoils                  = 0x01
	FuncCodeReadDiscreteInputs         = 0x02
	FuncCodeReadHoldingRegisters       = 0x03
	FuncCodeReadInputRegisters         = 0x04
	FuncCodeWriteSingleCoil            = 0x05
	FuncCodeWriteSingleRegister        = 0x06
	FuncCodeReadExceptionStatus        = 0x07
	FuncCodeDiagnostics                = 0x08
	FuncCodeCommEventCounter           = 0x0B
	FuncCodeCommEventLog               = 0x0C
	FuncCodeWriteMultipleCoils         = 0x0F
	FuncCodeWriteMultipleRegisters     = 0x10
	FuncCodeReportSlaveID              = 0x11
	FuncCodeReadFileRecord             = 0x14
	FuncCodeWriteFileRecord            = 0x15
	FuncCodeMaskWriteRegister          = 0x16
	FuncCodeReadWriteMultipleRegisters = 0x17
	FuncCodeReadFIFOQueue              = 0x18
	FuncCodeReadDeviceIdentification   = 0x2B
)

// Diagnostics (0x08) sub-function codes.
const (
	SubFuncDiagReturnQueryData       = 0x00
	SubFuncDiagRestartCommOption     = 0x01
	SubFuncDiagReturnDiagnosticReg   = 0x02
	SubFuncDiagChangeASCIIDelimiter  = 0x03
	SubFuncDiagForceListenOnlyMode   = 0x04
	SubFuncDiagClearCountersAndDiag  = 0x0A
	SubFuncDiagReturnBusMsgCount     = 0x0B
	SubFuncDiagReturnBusCommErrCount = 0x0C
	SubFuncDiagReturnExceptionCount  = 0x0D
	SubFuncDiagReturnSlaveMsgCount   = 0x0E
	SubFuncDiagReturnNoRespCount     = 0x0F
	SubFuncDiagReturnNAKCount        = 0x10
	SubFuncDiagReturnBusyCount       = 0x11
	SubFuncDiagReturnOverrunCount    = 0x12
	SubFuncDiagClearOverrunCount     = 0x14
)

// Exception codes, carried as the single data byte of an exception response.
const (
	ExceptionCodeIllegalFunction           = 0x01
	ExceptionCodeIllegalDataAddress        = 0x02
	ExceptionCodeIllegalDataValue          = 0x03
	ExceptionCodeServerDeviceFailure       = 0x04
	ExceptionCodeAcknowledge               = 0x05
	ExceptionCodeServerDeviceBusy          = 0x06
	ExceptionCodeNegativeAcknowledge       = 0x07
	ExceptionCodeMemoryParityError         = 0x08
	ExceptionCodeGatewayPathUnavailable    = 0x0A
	ExceptionCodeGatewayTargetFailedToResp = 0x0B
)

// Coil wire values for FuncCodeWriteSingleCoil / bit packing of FuncCodeWriteMultipleCoils echoes.
const (
	CoilOn  = 0xFF00
	CoilOff = 0x0000
)
