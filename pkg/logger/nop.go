package logger

type nop struct{}

// NewNop returns a Logger that discards everything. Intended for tests.
func NewNop() Logger { return nop{} }

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any)  {}
func (nop) Warn(string, ...any)  {}
func (nop) Error(string, ...any) {}
func (n nop) With(...any) Logger          { return n }
func (n nop) WithComponent(string) Logger { return n }
