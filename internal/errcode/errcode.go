package errcode

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure.
type Code int

const (
	None                        Code = 0
	USBClaimInterface           Code = 1
	USBInvalidConfigDescriptor  Code = 2
	USBObtainInterfaceDescr     Code = 3
	USBEmptyInterfaces          Code = 4
	USBInvalidDeviceEndpoints   Code = 5
	USBInvalidTransferMethod    Code = 6
	USBTransferAllocation       Code = 7
	USBListDevices              Code = 8
	USBObtainConfigDescriptor   Code = 9
	USBTransfer                 Code = 10
	DataSinkCommitOverflow      Code = 11
	DataSinkConsumeUnderflow    Code = 12
	USBAOAPProtocolVersion      Code = 13
	USBAOAPDeviceNotFound       Code = 14
	SSLReadCertificate          Code = 15
	SSLReadPrivateKey           Code = 16
	SSLMethod                   Code = 17
	SSLContextCreation          Code = 18
	SSLUseCertificate           Code = 19
	SSLUsePrivateKey            Code = 20
	SSLHandlerCreation          Code = 21
	SSLReadBIOCreation          Code = 22
	SSLWriteBIOCreation         Code = 23
	SSLHandshake                Code = 24
	SSLWrite                    Code = 25
	SSLRead                     Code = 26
	SSLBIORead                  Code = 27
	SSLBIOWrite                 Code = 28
	MessengerIntertwinedChannel Code = 29
	OperationAborted            Code = 30
	OperationInProgress         Code = 31
	ParsePayload                Code = 32
	TCPTransfer                 Code = 33
)

var codeNames = map[Code]string{
	None:                        "NONE",
	USBClaimInterface:           "USB_CLAIM_INTERFACE",
	USBInvalidConfigDescriptor:  "USB_INVALID_CONFIG_DESCRIPTOR",
	USBObtainInterfaceDescr:     "USB_OBTAIN_INTERFACE_DESCRIPTOR",
	USBEmptyInterfaces:          "USB_EMPTY_INTERFACES",
	USBInvalidDeviceEndpoints:   "USB_INVALID_DEVICE_ENDPOINTS",
	USBInvalidTransferMethod:    "USB_INVALID_TRANSFER_METHOD",
	USBTransferAllocation:       "USB_TRANSFER_ALLOCATION",
	USBListDevices:              "USB_LIST_DEVICES",
	USBObtainConfigDescriptor:   "USB_OBTAIN_CONFIG_DESCRIPTOR",
	USBTransfer:                 "USB_TRANSFER",
	DataSinkCommitOverflow:      "DATA_SINK_COMMIT_OVERFLOW",
	DataSinkConsumeUnderflow:    "DATA_SINK_CONSUME_UNDERFLOW",
	USBAOAPProtocolVersion:      "USB_AOAP_PROTOCOL_VERSION",
	USBAOAPDeviceNotFound:       "USB_AOAP_DEVICE_NOT_FOUND",
	SSLReadCertificate:          "SSL_READ_CERTIFICATE",
	SSLReadPrivateKey:           "SSL_READ_PRIVATE_KEY",
	SSLMethod:                   "SSL_METHOD",
	SSLContextCreation:          "SSL_CONTEXT_CREATION",
	SSLUseCertificate:           "SSL_USE_CERTIFICATE",
	SSLUsePrivateKey:            "SSL_USE_PRIVATE_KEY",
	SSLHandlerCreation:          "SSL_HANDLER_CREATION",
	SSLReadBIOCreation:          "SSL_READ_BIO_CREATION",
	SSLWriteBIOCreation:         "SSL_WRITE_BIO_CREATION",
	SSLHandshake:                "SSL_HANDSHAKE",
	SSLWrite:                    "SSL_WRITE",
	SSLRead:                     "SSL_READ",
	SSLBIORead:                  "SSL_BIO_READ",
	SSLBIOWrite:                 "SSL_BIO_WRITE",
	MessengerIntertwinedChannel: "MESSENGER_INTERTWINED_CHANNELS",
	OperationAborted:            "OPERATION_ABORTED",
	OperationInProgress:         "OPERATION_IN_PROGRESS",
	ParsePayload:                "PARSE_PAYLOAD",
	TCPTransfer:                 "TCP_TRANSFER",
}

// String returns the upper-snake name of the code
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Fatal reports whether the code indicates a framing or logic defect rather
// than a transient fault. Such errors must not be retried.
func (c Code) Fatal() bool {
	switch c {
	case DataSinkCommitOverflow, DataSinkConsumeUnderflow, MessengerIntertwinedChannel:
		return true
	default:
		return false
	}
}

// Error is the error type produced by every layer of the stack.
type Error struct {
	Code   Code  // Kind of failure
	Native int   // Status code of the underlying device, socket or TLS engine (0 if none)
	Err    error // Underlying error (if any)
}

// New creates an error with the given code and no cause.
func New(code Code) *Error {
	return &Error{Code: code}
}

// WithNative creates an error carrying a native status code.
func WithNative(code Code, native int) *Error {
	return &Error{Code: code, Native: native}
}

// Wrap creates an error with the given code wrapping cause.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Err: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (%d)", e.Code, int(e.Code))
	if e.Native != 0 {
		msg += fmt.Sprintf(", native code: %d", e.Native)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the code from err, returning None when err carries no *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return None
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
