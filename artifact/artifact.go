package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"syscall"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/xid"

	"github.com/ardnew/prpsweep/mem"
	"github.com/ardnew/prpsweep/pkg"
)

// Default artifact names.
const (
	DefaultGroup = "nvm_write_read"
	DefaultTest  = "prp_offset_single_page_multi_block"
)

// Option configures a Dir.
type Option func(*Dir)

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(d *Dir) {
		d.runID = id
	}
}

// WithNames sets the group and test names prefixed to every artifact.
func WithNames(group, test string) Option {
	return func(d *Dir) {
		d.group, d.test = group, test
	}
}

// WithCompression selects zstd-compressed dumps.
func WithCompression(enable bool) Option {
	return func(d *Dir) {
		d.compress = enable
	}
}

// Dir stores hex dumps of miscompared buffers under one directory per run:
//
//	<root>/<run>/<group>.<test>.<label>.hex[.zst]
//
// A repeated label gets a numeric suffix rather than replacing the earlier
// dump.
type Dir struct {
	root     string
	runID    string
	group    string
	test     string
	compress bool

	written []string
	seen    map[string]int
	created bool
	mutex   sync.Mutex
}

// New returns a Dir rooted at root. The run directory is created by the
// first Dump, so a run without miscompares leaves nothing behind. New fails
// if root exists and is not a directory.
func New(root string, opts ...Option) (*Dir, error) {
	d := &Dir{
		root:  root,
		runID: xid.New().String(),
		group: DefaultGroup,
		test:  DefaultTest,
		seen:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(d)
	}

	if fi, err := os.Stat(root); err == nil && !fi.IsDir() {
		return nil, fmt.Errorf("artifact root %s: %w", root, syscall.ENOTDIR)
	}
	return d, nil
}

// Path returns the run directory.
func (d *Dir) Path() string {
	return filepath.Join(d.root, d.runID)
}

// RunID returns the run identifier.
func (d *Dir) RunID() string {
	return d.runID
}

// Written returns the paths of all artifacts stored so far.
func (d *Dir) Written() []string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return slices.Clone(d.written)
}

// Dump implements sweep.DiagnosticSink. It returns the artifact path.
func (d *Dir) Dump(data []byte, label string) (string, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.created {
		if err := os.MkdirAll(d.Path(), 0o755); err != nil {
			return "", fmt.Errorf("create artifact directory: %w", err)
		}
		d.created = true
		pkg.LogDebug(pkg.ComponentArtifact, "artifact directory ready", "path", d.Path())
	}

	path := d.name(label)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}

	if err := d.write(f, data, label); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write artifact %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	d.written = append(d.written, path)
	pkg.LogInfo(pkg.ComponentArtifact, "buffer dumped",
		"label", label,
		"bytes", len(data),
		"path", path)
	return path, nil
}

// name returns a unique artifact path for label. The caller must hold the
// mutex.
func (d *Dir) name(label string) string {
	base := d.group + "." + d.test + "." + label
	if n := d.seen[label]; n > 0 {
		base = fmt.Sprintf("%s.%d", base, n)
	}
	d.seen[label]++

	name := base + ".hex"
	if d.compress {
		name += ".zst"
	}
	return filepath.Join(d.Path(), name)
}

func (d *Dir) write(w io.Writer, data []byte, label string) error {
	if !d.compress {
		return dump(w, data, label)
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := dump(enc, data, label); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func dump(w io.Writer, data []byte, label string) error {
	if _, err := fmt.Fprintf(w, "# %s: %d bytes\n", label, len(data)); err != nil {
		return err
	}
	return mem.DumpBytes(w, data)
}
