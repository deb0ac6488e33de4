package sandbox

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Limits bounds a single run. Zero fields take the defaults below.
type Limits struct {
	OutputKB    int   // captured print output
	MaxSteps    int64 // statements, loop iterations and calls
	MaxDepth    int   // snippet function call depth
	MaxItems    int   // elements in one list, tuple, dict, set or array
	MaxStrBytes int   // bytes in one string
}

const (
	DefaultOutputKB    = 64
	DefaultMaxSteps    = 10_000_000
	DefaultMaxDepth    = 200
	DefaultMaxItems    = 1_000_000
	DefaultMaxStrBytes = 4 << 20

	// gracePeriod is how long Run waits for an evaluation to notice
	// cancellation before abandoning it.
	gracePeriod = 250 * time.Millisecond

	// ctxCheckInterval is the number of ticks between context checks.
	ctxCheckInterval = 1024
)

func (l Limits) withDefaults() Limits {
	if l.OutputKB <= 0 {
		l.OutputKB = DefaultOutputKB
	}
	if l.MaxSteps <= 0 {
		l.MaxSteps = DefaultMaxSteps
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxDepth
	}
	if l.MaxItems <= 0 {
		l.MaxItems = DefaultMaxItems
	}
	if l.MaxStrBytes <= 0 {
		l.MaxStrBytes = DefaultMaxStrBytes
	}
	return l
}

// LimitKind distinguishes the two ways a run can be stopped from outside
// the snippet's own control flow.
type LimitKind int

const (
	LimitTimeout LimitKind = iota + 1
	LimitResource
)

// LimitError stops a run. Snippet try/except blocks never catch it.
type LimitError struct {
	Kind LimitKind
	Msg  string
}

func (e *LimitError) Error() string { return e.Repr() }

// Repr renders the error the way exceptions are rendered, for example
// Timeout('execution exceeded 5s').
func (e *LimitError) Repr() string {
	name := "ResourceLimit"
	if e.Kind == LimitTimeout {
		name = "Timeout"
	}
	return name + "(" + reprString(e.Msg) + ")"
}

func timeoutError(d time.Duration) *LimitError {
	if d <= 0 {
		return &LimitError{Kind: LimitTimeout, Msg: "execution cancelled"}
	}
	return &LimitError{Kind: LimitTimeout, Msg: fmt.Sprintf("execution exceeded %s", d)}
}

func resourceError(format string, args ...any) *LimitError {
	return &LimitError{Kind: LimitResource, Msg: fmt.Sprintf(format, args...)}
}

// ErrOutputLimit is returned by BoundedBuffer once its cap is reached.
var ErrOutputLimit = errors.New("output limit exceeded")

// BoundedBuffer is an io.Writer that caps total bytes written. Writes past
// the cap are truncated and return ErrOutputLimit. It is safe for
// concurrent use so an abandoned evaluation cannot race the reader.
type BoundedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	capBytes  int
	truncated bool
}

// NewBoundedBuffer creates a buffer holding at most maxKB KiB. A zero or
// negative maxKB selects DefaultOutputKB.
func NewBoundedBuffer(maxKB int) *BoundedBuffer {
	if maxKB <= 0 {
		maxKB = DefaultOutputKB
	}
	return &BoundedBuffer{capBytes: maxKB * 1024}
}

func (b *BoundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.capBytes - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return 0, ErrOutputLimit
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return remaining, ErrOutputLimit
	}
	return b.buf.Write(p)
}

// WriteString is Write for strings.
func (b *BoundedBuffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

func (b *BoundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Truncated reports whether any write exceeded the cap.
func (b *BoundedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
