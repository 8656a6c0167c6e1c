package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// ===== 错误码 =====

const (
	ServerInternalError = 500
	ArgsError           = 1001
	NoSessionError      = 1101 // 凭证无法解析为身份
	UnauthorizedError   = 1102
	TransportClosedErr  = 1201
	GatewayClosedErr    = 1202
	MalformedFrameErr   = 1301
	UnknownKindErr      = 1302
	ConfigError         = 1401
)

var (
	ErrArgs            = NewCodeError(ArgsError, "ArgsError")
	ErrNoSession       = NewCodeError(NoSessionError, "NoSessionError")
	ErrUnauthorized    = NewCodeError(UnauthorizedError, "Unauthorized")
	ErrTransportClosed = NewCodeError(TransportClosedErr, "TransportClosed")
	ErrGatewayClosed   = NewCodeError(GatewayClosedErr, "GatewayClosed")
	ErrMalformedFrame  = NewCodeError(MalformedFrameErr, "MalformedFrame")
	ErrUnknownKind     = NewCodeError(UnknownKindErr, "UnknownKind")
	ErrConfig          = NewCodeError(ConfigError, "ConfigError")
	ErrInternal        = NewCodeError(ServerInternalError, "ServerInternalError")
)

func NewCodeError(code int, msg string) CodeError {
	return CodeError{
		Code: code,
		Msg:  msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e CodeError) WithDetail(detail string) CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: d,
	}
}

// Wrap returns the code error with a stack attached.
func (e CodeError) Wrap() error {
	return pkgerrors.WithStack(e)
}

// WrapMsg appends msg and key/value pairs to Detail and attaches a stack.
func (e CodeError) WrapMsg(msg string, kv ...any) error {
	ret := e
	if msg != "" || len(kv) > 0 {
		ret = e.WithDetail(toString(msg, kv))
	}
	return pkgerrors.WithStack(ret)
}

// Is reports whether err carries a CodeError with the same code.
func (e CodeError) Is(err error) bool {
	var codeErr CodeError
	if !errors.As(err, &codeErr) {
		return false
	}
	return codeErr.Code == e.Code
}

func (e CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// Code extracts the code carried by err, 0 when err is not a CodeError.
func Code(err error) int {
	var codeErr CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}
	return 0
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, toString(msg, kv))
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			sb.WriteString("MISSING")
		}
	}
	return sb.String()
}
