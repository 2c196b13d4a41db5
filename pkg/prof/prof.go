//go:build profile

package prof

import (
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Register handlers at /debug/pprof/
	"os"
	"runtime"
	"runtime/pprof"
	"sync"

	"github.com/ardnew/prpsweep/pkg"
)

// Enabled reports whether profiling was compiled in.
const Enabled = true

// ErrActive indicates a profiling session is already running.
var ErrActive = errors.New("profiling session already active")

var (
	activeMutex sync.Mutex
	active      bool
)

// Session is a running profiling session.
type Session struct {
	opts    Options
	cpuFile *os.File
	once    sync.Once
}

// Start begins the profiles selected by opts. Only one session may be
// active at a time.
func Start(opts Options) (*Session, error) {
	activeMutex.Lock()
	defer activeMutex.Unlock()
	if active {
		return nil, ErrActive
	}

	s := &Session{opts: opts}
	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, err
		}
		s.cpuFile = f
	}
	if opts.Block {
		runtime.SetBlockProfileRate(1)
		runtime.SetMutexProfileFraction(1)
	}
	if opts.Listen != "" {
		go func() {
			err := http.ListenAndServe(opts.Listen, nil)
			pkg.LogWarn(pkg.ComponentEngine, "pprof listener stopped", "error", err)
		}()
	}

	active = true
	return s, nil
}

// Stop ends the CPU profile and writes the heap profile. Later calls do
// nothing.
func (s *Session) Stop() error {
	var err error
	s.once.Do(func() {
		if s.cpuFile != nil {
			pprof.StopCPUProfile()
			err = s.cpuFile.Close()
		}
		if s.opts.Heap != "" {
			err = errors.Join(err, write("heap", s.opts.Heap))
		}
		if s.opts.Block {
			runtime.SetBlockProfileRate(0)
			runtime.SetMutexProfileFraction(0)
		}

		activeMutex.Lock()
		active = false
		activeMutex.Unlock()
	})
	return err
}

func write(profile, path string) error {
	p := pprof.Lookup(profile)
	if p == nil {
		return fmt.Errorf("unknown profile %q", profile)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := p.WriteTo(f, 0); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
