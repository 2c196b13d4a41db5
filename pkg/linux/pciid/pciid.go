package pciid

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DefaultPaths lists the standard locations of the PCI ID database.
var DefaultPaths = []string{
	"/usr/share/hwdata/pci.ids",
	"/usr/share/misc/pci.ids",
	"/usr/share/pci.ids",
}

// Database caches vendor and device names from the PCI ID database.
type Database struct {
	vendors map[uint16]string // VID -> vendor name
	devices map[uint32]string // (VID<<16)|DID -> device name
	paths   []string
	loaded  bool
	mu      sync.RWMutex
}

// New returns a database that searches paths, or [DefaultPaths] when none
// are given.
func New(paths ...string) *Database {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	return &Database{
		vendors: make(map[uint16]string),
		devices: make(map[uint32]string),
		paths:   paths,
	}
}

// Load parses the first database file found. Later calls do nothing.
// Returns false if no file could be opened.
func (db *Database) Load() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.loaded {
		return len(db.vendors) > 0
	}
	db.loaded = true

	for _, path := range db.paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		defer f.Close()
		db.parse(f)
		return true
	}
	return false
}

// parse reads the pci.ids format: vendor lines "vvvv  Name", device lines
// "\tdddd  Name", and subsystem lines "\t\tssss ssss  Name". Class
// sections ("C xx  Name") end the vendor list.
func (db *Database) parse(r io.Reader) {
	scanner := bufio.NewScanner(r)
	var vid uint16
	inVendor := false

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		switch {
		case strings.HasPrefix(line, "\t\t"):
			// Subsystem
		case line[0] == '\t':
			if !inVendor {
				continue
			}
			id, name, ok := entry(line[1:])
			if ok {
				db.devices[uint32(vid)<<16|uint32(id)] = name
			}
		default:
			id, name, ok := entry(line)
			inVendor = ok
			if ok {
				vid = id
				db.vendors[vid] = name
			}
		}
	}
}

// entry splits "xxxx  Name".
func entry(line string) (uint16, string, bool) {
	if len(line) < 6 || line[4] != ' ' {
		return 0, "", false
	}
	id, err := strconv.ParseUint(line[:4], 16, 16)
	if err != nil {
		return 0, "", false
	}
	return uint16(id), strings.TrimLeft(line[5:], " "), true
}

// Vendor returns the vendor name for vid, or "" if unknown.
func (db *Database) Vendor(vid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.vendors[vid]
}

// Device returns the device name for vid:did, or "" if unknown.
func (db *Database) Device(vid, did uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.devices[uint32(vid)<<16|uint32(did)]
}

// Describe returns "Vendor" or "Vendor Device" for display, falling back
// to the hexadecimal identifiers.
func (db *Database) Describe(vid, did uint16) string {
	v := db.Vendor(vid)
	if v == "" {
		return "[" + strconv.FormatUint(uint64(vid), 16) + "]"
	}
	if d := db.Device(vid, did); d != "" {
		return v + " " + d
	}
	return v
}
