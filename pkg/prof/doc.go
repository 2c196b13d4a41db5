// Package prof wraps [runtime/pprof] for the sweep command line.
//
// Profiling is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/prpsweep
//
// Without the tag [Start] and [Session.Stop] do nothing, so the command
// keeps its profiling flags at no cost. A session writes a CPU profile
// while it runs and a heap profile when it stops; with Listen set it also
// serves /debug/pprof/.
//
//	s, err := prof.Start(prof.Options{CPU: "cpu.prof", Heap: "heap.prof"})
//	if err != nil {
//		return err
//	}
//	defer s.Stop()
package prof
