package output

import (
	"fmt"
	"io"
	"sync"
)

// Messenger prints short status lines. Informational lines go to out,
// warnings to errOut. It is safe for concurrent use.
type Messenger struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

// NewMessenger creates a Messenger.
func NewMessenger(out, errOut io.Writer) *Messenger {
	return &Messenger{out: out, errOut: errOut}
}

// Infof prints an informational line.
func (m *Messenger) Infof(format string, args ...any) {
	m.line(m.out, "ℹ️  "+fmt.Sprintf(format, args...))
}

// Warnf prints a warning line.
func (m *Messenger) Warnf(format string, args ...any) {
	m.line(m.errOut, "⚠️  "+fmt.Sprintf(format, args...))
}

// Successf prints a success line.
func (m *Messenger) Successf(format string, args ...any) {
	m.line(m.out, "✅ "+fmt.Sprintf(format, args...))
}

func (m *Messenger) line(w io.Writer, s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _ = fmt.Fprintln(w, s)
}
