package sandbox

import (
	"fmt"
	"strings"
)

// ExcClass is a builtin exception class.
type ExcClass struct {
	Name string
	Base *ExcClass
}

func (*ExcClass) Type() string { return "type" }

// IsSubclass reports whether c is other or derives from it.
func (c *ExcClass) IsSubclass(other *ExcClass) bool {
	for k := c; k != nil; k = k.Base {
		if k == other {
			return true
		}
	}
	return false
}

// Exception is a raised or constructed exception instance. It doubles as
// the Go error that carries a snippet exception up the interpreter stack.
type Exception struct {
	Class *ExcClass
	Args  []Value
	Cause *Exception
}

func (e *Exception) Type() string { return e.Class.Name }

func (e *Exception) Error() string { return e.Repr() }

// Repr renders the exception as Python's repr does, for example
// ZeroDivisionError('division by zero').
func (e *Exception) Repr() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = reprValue(a)
	}
	return e.Class.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Message is str(exception).
func (e *Exception) Message() string {
	switch len(e.Args) {
	case 0:
		return ""
	case 1:
		if e.Class.IsSubclass(KeyError) {
			return reprValue(e.Args[0])
		}
		return strValue(e.Args[0])
	}
	return reprValue(Tuple(e.Args))
}

var (
	BaseException       = &ExcClass{Name: "BaseException"}
	ExceptionClass      = &ExcClass{Name: "Exception", Base: BaseException}
	ArithmeticError     = &ExcClass{Name: "ArithmeticError", Base: ExceptionClass}
	ZeroDivisionError   = &ExcClass{Name: "ZeroDivisionError", Base: ArithmeticError}
	OverflowError       = &ExcClass{Name: "OverflowError", Base: ArithmeticError}
	LookupError         = &ExcClass{Name: "LookupError", Base: ExceptionClass}
	IndexError          = &ExcClass{Name: "IndexError", Base: LookupError}
	KeyError            = &ExcClass{Name: "KeyError", Base: LookupError}
	ValueError          = &ExcClass{Name: "ValueError", Base: ExceptionClass}
	TypeError           = &ExcClass{Name: "TypeError", Base: ExceptionClass}
	RuntimeError        = &ExcClass{Name: "RuntimeError", Base: ExceptionClass}
	RecursionError      = &ExcClass{Name: "RecursionError", Base: RuntimeError}
	NotImplementedError = &ExcClass{Name: "NotImplementedError", Base: RuntimeError}
	NameError           = &ExcClass{Name: "NameError", Base: ExceptionClass}
	UnboundLocalError   = &ExcClass{Name: "UnboundLocalError", Base: NameError}
	AttributeError      = &ExcClass{Name: "AttributeError", Base: ExceptionClass}
	AssertionError      = &ExcClass{Name: "AssertionError", Base: ExceptionClass}
	ImportError         = &ExcClass{Name: "ImportError", Base: ExceptionClass}
	ModuleNotFoundError = &ExcClass{Name: "ModuleNotFoundError", Base: ImportError}
	StopIteration       = &ExcClass{Name: "StopIteration", Base: ExceptionClass}
	StatisticsError     = &ExcClass{Name: "StatisticsError", Base: ValueError}
)

// exceptionClasses are the classes reachable by name from a snippet.
var exceptionClasses = []*ExcClass{
	ExceptionClass, ValueError, TypeError, ZeroDivisionError, IndexError,
	KeyError, ArithmeticError, LookupError, RuntimeError, NameError,
	AttributeError, AssertionError, NotImplementedError, OverflowError,
	RecursionError, ImportError, ModuleNotFoundError, StopIteration,
}

func newExc(class *ExcClass, msg string) *Exception {
	return &Exception{Class: class, Args: []Value{Str(msg)}}
}

func typeErrorf(format string, args ...any) *Exception {
	return newExc(TypeError, fmt.Sprintf(format, args...))
}

// FormatException renders a class name and message the way Repr does for
// a single-argument exception.
func FormatException(class, msg string) string {
	if msg == "" {
		return class + "()"
	}
	return class + "(" + reprString(msg) + ")"
}
