package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/ardnew/prpsweep/pkg"
)

// EnvPrefix prefixes every configuration variable.
const EnvPrefix = "PRPSWEEP_"

// Backends.
const (
	BackendSim   = "sim"   // Simulated controller
	BackendLinux = "linux" // Kernel NVMe passthrough
)

// Read corruption injected by the simulated controller.
const (
	CorruptData     = "data"
	CorruptMetadata = "metadata"
)

// DefaultArtifactDir is where miscompare dumps go unless configured.
const DefaultArtifactDir = "artifacts"

// Config holds every setting of a sweep run.
type Config struct {
	Backend string // "sim" or "linux"
	Device  string // Namespace block device for the linux backend

	Seed           uint64
	NSID           uint32
	CommandTimeout time.Duration

	// Simulated controller and namespace.
	PageSize      uint64 // Memory page size programmed in CC.MPS
	LBASize       uint64
	Blocks        uint64
	MetadataSize  uint64
	MDTS          uint8
	Protection    uint8
	QueueDepth    uint16
	NamespaceFile string // File-backed namespace; in memory when empty
	StrictPRP2    bool   // Reject a non-zero reserved PRP2
	Corrupt       string // Flip a read byte: "", "data" or "metadata"

	ArtifactDir string // Miscompare dumps; disabled only when set empty
	Compress    bool

	MetricsFile string // Prometheus textfile written after the run
	PushGateway string // Pushgateway URL

	LogLevel  slog.Level
	LogFormat pkg.LogFormat
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:        BackendSim,
		Seed:           51,
		NSID:           1,
		CommandTimeout: 5 * time.Second,
		PageSize:       4096,
		LBASize:        512,
		Blocks:         1024,
		MDTS:           5,
		QueueDepth:     2,
		ArtifactDir:    DefaultArtifactDir,
		LogLevel:       slog.LevelWarn,
	}
}

// Load reads the given .env files (or ./.env when none are named) and
// applies PRPSWEEP_* variables over the defaults. Variables already in the
// environment take precedence over file values. A missing default .env is
// not an error.
func Load(files ...string) (Config, error) {
	values, err := readEnvFiles(files)
	if err != nil {
		return Config{}, err
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			values[k] = v
		}
	}

	cfg := Default()
	if err := cfg.Apply(values); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	values := make(map[string]string)
	if len(files) == 0 {
		m, err := godotenv.Read(".env")
		if errors.Is(err, fs.ErrNotExist) {
			return values, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read .env: %w", err)
		}
		return m, nil
	}

	for _, f := range files {
		m, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		maps.Copy(values, m)
	}
	return values, nil
}

// Apply overrides fields from PRPSWEEP_* entries of values. Unknown
// PRPSWEEP_* names are rejected.
func (c *Config) Apply(values map[string]string) error {
	var errs []error
	for key, v := range values {
		name, ok := strings.CutPrefix(key, EnvPrefix)
		if !ok {
			continue
		}
		if err := c.set(name, strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s=%q: %w", pkg.ErrInvalidParameter, key, v, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) set(name, v string) error {
	var err error
	switch name {
	case "BACKEND":
		c.Backend = strings.ToLower(v)
	case "DEVICE":
		c.Device = v
	case "SEED":
		c.Seed, err = strconv.ParseUint(v, 0, 64)
	case "NSID":
		err = parseUint(v, 32, &c.NSID)
	case "TIMEOUT":
		c.CommandTimeout, err = time.ParseDuration(v)
	case "PAGE_SIZE":
		c.PageSize, err = humanize.ParseBytes(v)
	case "LBA_SIZE":
		c.LBASize, err = humanize.ParseBytes(v)
	case "BLOCKS":
		c.Blocks, err = strconv.ParseUint(v, 0, 64)
	case "METADATA_SIZE":
		c.MetadataSize, err = humanize.ParseBytes(v)
	case "MDTS":
		err = parseUint(v, 8, &c.MDTS)
	case "PI":
		err = parseUint(v, 8, &c.Protection)
	case "QUEUE_DEPTH":
		err = parseUint(v, 16, &c.QueueDepth)
	case "NAMESPACE_FILE":
		c.NamespaceFile = v
	case "STRICT_PRP2":
		c.StrictPRP2, err = strconv.ParseBool(v)
	case "CORRUPT":
		c.Corrupt = strings.ToLower(v)
	case "ARTIFACT_DIR":
		c.ArtifactDir = v
	case "COMPRESS":
		c.Compress, err = strconv.ParseBool(v)
	case "METRICS_FILE":
		c.MetricsFile = v
	case "PUSHGATEWAY":
		c.PushGateway = v
	case "LOG_LEVEL":
		err = c.LogLevel.UnmarshalText([]byte(v))
	case "LOG_FORMAT":
		c.LogFormat, err = pkg.ParseLogFormat(strings.ToLower(v))
	default:
		err = errors.New("unknown variable")
	}
	return err
}

func parseUint[T ~uint8 | ~uint16 | ~uint32](v string, bits int, out *T) error {
	n, err := strconv.ParseUint(v, 0, bits)
	if err != nil {
		return err
	}
	*out = T(n)
	return nil
}

// Validate reports settings that cannot produce a sweep.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{pkg.ErrInvalidParameter}, args...)...))
	}

	switch c.Backend {
	case BackendSim:
		if c.PageSize < 4096 || c.PageSize&(c.PageSize-1) != 0 {
			fail("page size %d is not a power of two of at least 4 KiB", c.PageSize)
		}
		if c.LBASize < 512 || c.LBASize&(c.LBASize-1) != 0 {
			fail("LBA size %d is not a power of two of at least 512", c.LBASize)
		}
		if c.LBASize > 0 && c.PageSize > 0 && c.Blocks*c.LBASize < c.PageSize {
			fail("namespace of %d blocks is smaller than one page", c.Blocks)
		}
		if c.MetadataSize > 0xFFFF {
			fail("metadata size %d too large", c.MetadataSize)
		}
		if c.QueueDepth < 2 {
			fail("queue depth %d below 2", c.QueueDepth)
		}
		switch c.Corrupt {
		case "", CorruptData, CorruptMetadata:
		default:
			fail("unknown corruption %q", c.Corrupt)
		}
	case BackendLinux:
		if c.Device == "" {
			fail("linux backend needs a device")
		}
	default:
		fail("unknown backend %q", c.Backend)
	}

	if c.NSID == 0 {
		fail("namespace ID 0")
	}
	if c.CommandTimeout <= 0 {
		fail("command timeout %s", c.CommandTimeout)
	}
	return errors.Join(errs...)
}

// String summarizes the run settings for logging.
func (c Config) String() string {
	if c.Backend == BackendLinux {
		return fmt.Sprintf("backend=linux device=%s nsid=%d seed=%d timeout=%s",
			c.Device, c.NSID, c.Seed, c.CommandTimeout)
	}
	return fmt.Sprintf("backend=sim page=%s lba=%s blocks=%d meta=%d mdts=%d pi=%d seed=%d",
		humanize.IBytes(c.PageSize), humanize.IBytes(c.LBASize), c.Blocks,
		c.MetadataSize, c.MDTS, c.Protection, c.Seed)
}
