package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConfiguration 启动配置错误，进程不能继续
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidArgument 内部传入了不支持的参数
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrHedgeIncomplete 对冲单没有完全成交
	ErrHedgeIncomplete = errors.New("hedge incomplete")
)

// GatewayError wraps any failure reported by a venue adapter: transport, deadline or remote rejection.
type GatewayError struct {
	Venue string
	Op    string
	Err   error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Venue, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError returns nil when err is nil. An err that already is a GatewayError is returned as is.
func NewGatewayError(venue, op string, err error) error {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return err
	}
	return &GatewayError{Venue: venue, Op: op, Err: err}
}

// IsGatewayError 判断错误链中是否包含 GatewayError
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

// ConfigError wraps ErrConfiguration with a formatted reason.
func ConfigError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}
