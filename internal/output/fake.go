package output

import "github.com/sweeney/nightlight/internal/logic"

// Fake is a test double that records every color written.
type Fake struct {
	// Writes contains every color passed to Write, in order.
	Writes []logic.Color

	// WriteError, if set, will be returned by Write (and nothing is recorded).
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{}
}

// Write records c.
func (f *Fake) Write(c logic.Color) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, c)
	return nil
}

// Last returns the most recent write, or black if nothing was written.
func (f *Fake) Last() logic.Color {
	if len(f.Writes) == 0 {
		return logic.Black
	}
	return f.Writes[len(f.Writes)-1]
}

// Close marks the writer as closed.
func (f *Fake) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded writes.
func (f *Fake) Reset() {
	f.Writes = nil
	f.WriteError = nil
	f.Closed = false
}
