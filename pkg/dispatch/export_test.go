package dispatch

// Apply exposes the drop reason for tests.
func (d *Dispatcher) Apply(raw []byte) error { return d.apply(raw) }
