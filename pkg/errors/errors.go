package errors

import (
	stderrors "errors"
	"fmt"
	pkgerrors "github.com/pkg/errors"
	"runtime"
	"strings"
)

// New returns an error with the supplied message and the caller stack.
func New(message string) error {
	return pkgerrors.New(message)
}

// Errorf formats according to a format specifier and records the caller stack.
func Errorf(format string, args ...interface{}) error {
	return pkgerrors.Errorf(format, args...)
}

// Wrap annotates err with a message and the caller stack. Wrap returns nil if err is nil.
func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message and the caller stack.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// WithStack annotates err with the caller stack only.
func WithStack(err error) error {
	return pkgerrors.WithStack(err)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// NewWithReport 创建错误并上报至已注册的报告器
func NewWithReport(message string) error {
	err := pkgerrors.New(message)
	report(err)
	return err
}

// ErrorfAndReport 格式化错误并上报
func ErrorfAndReport(format string, args ...interface{}) error {
	err := pkgerrors.Errorf(format, args...)
	report(err)
	return err
}

// WrapAndReport 包装错误并上报，err为nil时返回nil且不上报
func WrapAndReport(err error, message string) error {
	if err == nil {
		return nil
	}
	err = pkgerrors.Wrap(err, message)
	report(err)
	return err
}

func WrapfAndReport(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	err = pkgerrors.Wrapf(err, format, args...)
	report(err)
	return err
}

func WithStackAndReport(err error) error {
	if err == nil {
		return nil
	}
	err = pkgerrors.WithStack(err)
	report(err)
	return err
}

const maxStackDepth = 32

type stack []uintptr

func callers() *stack {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(2, pcs)
	s := stack(pcs[:n])
	return &s
}

// fullStack renders every frame as "function file:line".
func (s *stack) fullStack() []string {
	frames := runtime.CallersFrames(*s)
	out := make([]string, 0, len(*s))
	for {
		f, more := frames.Next()
		out = append(out, fmt.Sprintf("%s %s:%d", trimFuncName(f.Function), f.File, f.Line))
		if !more {
			break
		}
	}
	return out
}

func trimFuncName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
