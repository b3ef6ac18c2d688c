package ads

import (
	"fmt"
	"time"
)

// ErrorKind classifies an AdsError the way the ADS error handling design
// groups failures: configuration, transport, TLS, protocol, application,
// timeout, lifecycle.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindTransport     ErrorKind = "transport"
	KindTLS           ErrorKind = "tls"
	KindProtocol      ErrorKind = "protocol"
	KindApplication   ErrorKind = "application"
	KindTimeout       ErrorKind = "timeout"
	KindLifecycle     ErrorKind = "lifecycle"
)

// AdsError is the single structured error type this library returns. The
// Kind groups the failure; Code is populated only for KindApplication and
// carries the raw ADS error code from the AMS header.
type AdsError struct {
	Kind      ErrorKind
	Op        string
	Message   string
	Cause     error
	Code      uint32
	Timestamp time.Time
}

func (e *AdsError) Error() string {
	s := fmt.Sprintf("[%s]", e.Kind)
	if e.Op != "" {
		s += " " + e.Op
	}
	if e.Kind == KindApplication {
		s += fmt.Sprintf(" (0x%08X %s)", e.Code, adsErrorName(e.Code))
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *AdsError) Unwrap() error { return e.Cause }

// Is compares by Kind, so callers can write errors.Is(err, &AdsError{Kind: KindTimeout}).
func (e *AdsError) Is(target error) bool {
	t, ok := target.(*AdsError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind ErrorKind, op, message string, cause error) *AdsError {
	return &AdsError{Kind: kind, Op: op, Message: message, Cause: cause, Timestamp: time.Now()}
}

func NewConfigError(op, message string, cause error) *AdsError {
	return newErr(KindConfiguration, op, message, cause)
}

func NewTransportError(op, message string, cause error) *AdsError {
	return newErr(KindTransport, op, message, cause)
}

func NewTLSError(op, message string, cause error) *AdsError {
	return newErr(KindTLS, op, message, cause)
}

func NewProtocolError(op, message string, cause error) *AdsError {
	return newErr(KindProtocol, op, message, cause)
}

func NewTimeoutError(op, message string, cause error) *AdsError {
	return newErr(KindTimeout, op, message, cause)
}

func NewLifecycleError(op, message string, cause error) *AdsError {
	return newErr(KindLifecycle, op, message, cause)
}

// NewApplicationError wraps a non-zero ADS error code returned in an AMS
// header as a KindApplication AdsError.
func NewApplicationError(op string, code uint32) *AdsError {
	return &AdsError{Kind: KindApplication, Op: op, Code: code, Timestamp: time.Now()}
}

// Common ADS error codes, as reported in the AMS header's ErrorCode field.
const (
	ErrNoError               uint32 = 0x0000
	ErrInternal              uint32 = 0x0001
	ErrNoRuntime             uint32 = 0x0002
	ErrAllocLockedMem        uint32 = 0x0003
	ErrInsertMailbox         uint32 = 0x0004
	ErrWrongHMsg             uint32 = 0x0005
	ErrTargetPortNotFound    uint32 = 0x0006
	ErrTargetMachineNotFound uint32 = 0x0007
	ErrUnknownCmdId          uint32 = 0x0008
	ErrBadTaskId             uint32 = 0x0009
	ErrNoIO                  uint32 = 0x000A
	ErrUnknownAmsCmd         uint32 = 0x000B
	ErrWin32Error            uint32 = 0x000C
	ErrPortNotConnected      uint32 = 0x000D
	ErrInvalidAmsLength      uint32 = 0x000E
	ErrInvalidAmsNetId       uint32 = 0x000F
	ErrLowInstLevel          uint32 = 0x0010
	ErrNoDebugInfo           uint32 = 0x0011
	ErrPortDisabled          uint32 = 0x0012
	ErrPortAlreadyConnected  uint32 = 0x0013
	ErrAmsSync               uint32 = 0x0014
	ErrAmsSyncSendError      uint32 = 0x0015
	ErrAmsNoSync             uint32 = 0x0016
	ErrNoIndexMap            uint32 = 0x0017
	ErrInvalidAmsPort        uint32 = 0x0018
	ErrNoMemory              uint32 = 0x0019
	ErrTcpSend               uint32 = 0x001A
	ErrHostUnreachable       uint32 = 0x001B
	ErrInvalidAmsFragment    uint32 = 0x001C
	ErrTlsSend               uint32 = 0x001D
	ErrAccessDenied          uint32 = 0x001E

	ErrRouterNoLockedMem      uint32 = 0x0500
	ErrRouterResizeMem        uint32 = 0x0501
	ErrRouterMailboxFull      uint32 = 0x0502
	ErrRouterDebugboxFull     uint32 = 0x0503
	ErrRouterUnknownPortType  uint32 = 0x0504
	ErrRouterNotInitialized   uint32 = 0x0505
	ErrRouterPortRemoved      uint32 = 0x0506
	ErrRouterPortNotOpen      uint32 = 0x0507
	ErrRouterPortOpen         uint32 = 0x0508
	ErrRouterPortConnected    uint32 = 0x0509
	ErrRouterPortNotConnected uint32 = 0x050A
	ErrRouterNoSendQueue      uint32 = 0x050B

	ErrDeviceError                uint32 = 0x0700
	ErrDeviceSrvNotSupp           uint32 = 0x0701
	ErrDeviceInvalidGrp           uint32 = 0x0702
	ErrDeviceInvalidOffs          uint32 = 0x0703
	ErrDeviceInvalidAccess        uint32 = 0x0704
	ErrDeviceInvalidSize          uint32 = 0x0705
	ErrDeviceInvalidData          uint32 = 0x0706
	ErrDeviceNotReady             uint32 = 0x0707
	ErrDeviceBusy                 uint32 = 0x0708
	ErrDeviceInvalidContext       uint32 = 0x0709
	ErrDeviceNoMemory             uint32 = 0x070A
	ErrDeviceInvalidParam         uint32 = 0x070B
	ErrDeviceNotFound             uint32 = 0x070C
	ErrDeviceSyntax               uint32 = 0x070D
	ErrDeviceIncompatible         uint32 = 0x070E
	ErrDeviceExists               uint32 = 0x070F
	ErrDeviceSymbolNotFound       uint32 = 0x0710
	ErrDeviceSymbolVersionInvalid uint32 = 0x0711
	ErrDeviceInvalidState         uint32 = 0x0712
	ErrDeviceTransModeNotSupp     uint32 = 0x0713
	ErrDeviceNotifyHndInvalid     uint32 = 0x0714
	ErrDeviceClientUnknown        uint32 = 0x0715
	ErrDeviceNoMoreHdls           uint32 = 0x0716
	ErrDeviceInvalidWatchSize     uint32 = 0x0717
	ErrDeviceNotInit              uint32 = 0x0718
	ErrDeviceTimeout              uint32 = 0x0719
	ErrDeviceNoInterface          uint32 = 0x071A
	ErrDeviceInvalidInterface     uint32 = 0x071B
	ErrDeviceInvalidClsId         uint32 = 0x071C
	ErrDeviceInvalidObjId         uint32 = 0x071D
	ErrDevicePending              uint32 = 0x071E
	ErrDeviceAborted              uint32 = 0x071F
	ErrDeviceWarning              uint32 = 0x0720
	ErrDeviceInvalidArrayIdx      uint32 = 0x0721
	ErrDeviceSymbolNotActive      uint32 = 0x0722
	ErrDeviceAccessDenied         uint32 = 0x0723
	ErrDeviceLicenseNotFound      uint32 = 0x0724
	ErrDeviceLicenseExpired       uint32 = 0x0725
	ErrDeviceLicenseExceeded      uint32 = 0x0726
	ErrDeviceLicenseInvalid       uint32 = 0x0727
	ErrDeviceException            uint32 = 0x072D
	ErrDeviceCertInvalid          uint32 = 0x0730
	ErrDeviceInvalidFncId         uint32 = 0x0734
	ErrDeviceOutOfRange           uint32 = 0x0735
	ErrDeviceInvalidAlignment     uint32 = 0x0736
	ErrDevicePortDisabled         uint32 = 0x0739
	ErrDevicePortConnected        uint32 = 0x073A
	ErrDeviceInvalidQualifier     uint32 = 0x073B
	ErrDeviceInvalidMailbox       uint32 = 0x073C
)

func adsErrorName(code uint32) string {
	switch code {
	case ErrNoError:
		return "No error"
	case ErrTargetPortNotFound:
		return "Target port not found"
	case ErrTargetMachineNotFound:
		return "Target machine not found"
	case ErrUnknownCmdId:
		return "Unknown command ID"
	case ErrPortNotConnected:
		return "Port not connected"
	case ErrInvalidAmsLength:
		return "Invalid AMS length"
	case ErrInvalidAmsNetId:
		return "Invalid AMS Net ID"
	case ErrAccessDenied:
		return "Access denied"
	case ErrDeviceError:
		return "Device error"
	case ErrDeviceSrvNotSupp:
		return "Service not supported"
	case ErrDeviceInvalidGrp:
		return "Invalid index group"
	case ErrDeviceInvalidOffs:
		return "Invalid index offset"
	case ErrDeviceInvalidAccess:
		return "Invalid access"
	case ErrDeviceInvalidSize:
		return "Invalid size"
	case ErrDeviceInvalidData:
		return "Invalid data"
	case ErrDeviceNotReady:
		return "Device not ready"
	case ErrDeviceBusy:
		return "Device busy"
	case ErrDeviceNoMemory:
		return "Out of memory"
	case ErrDeviceInvalidParam:
		return "Invalid parameter"
	case ErrDeviceNotFound:
		return "Device not found"
	case ErrDeviceSymbolNotFound:
		return "Symbol not found"
	case ErrDeviceTimeout:
		return "Timeout"
	case ErrDeviceAccessDenied:
		return "Access denied"
	default:
		return "Unknown error"
	}
}
