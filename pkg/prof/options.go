package prof

// Options selects the profiles of a session.
type Options struct {
	CPU    string // CPU profile output path
	Heap   string // Heap profile written when the session stops
	Block  bool   // Record block and mutex contention
	Listen string // Address serving /debug/pprof/
}

// Any reports whether opts selects anything.
func (o Options) Any() bool {
	return o.CPU != "" || o.Heap != "" || o.Block || o.Listen != ""
}
