package device

import (
	"encoding/binary"

	"github.com/ardnew/prpsweep/mem"
	"github.com/ardnew/prpsweep/nvme"
)

// prpEntrySize is the size of one PRP list entry.
const prpEntrySize = 8

// segment is a run of host memory described by one PRP entry.
type segment struct {
	addr   uint64
	length uint64
}

// prpWalker resolves the PRP entries of a command into host memory
// segments.
type prpWalker struct {
	space    *mem.Space
	pageSize uint64

	// strict rejects a non-zero PRP2 when the transfer fits in the page
	// addressed by PRP1 and PRP2 is therefore reserved.
	strict bool
}

// walk returns the segments covering length bytes described by prp1 and
// prp2, or the status a controller reports for a malformed entry.
func (w prpWalker) walk(prp1, prp2, length uint64) ([]segment, nvme.Status) {
	ok := nvme.MakeStatus(nvme.SCTGeneric, nvme.SCSuccess)
	if prp1&0x3 != 0 {
		return nil, nvme.MakeStatus(nvme.SCTGeneric, nvme.SCPRPOffsetInvalid)
	}

	first := min(length, w.pageSize-prp1%w.pageSize)
	segs := []segment{{addr: prp1, length: first}}
	remaining := length - first

	switch {
	case remaining == 0:
		if w.strict && prp2 != 0 {
			return nil, nvme.MakeStatus(nvme.SCTGeneric, nvme.SCInvalidField)
		}
		return segs, ok

	case remaining <= w.pageSize:
		if prp2%w.pageSize != 0 {
			return nil, nvme.MakeStatus(nvme.SCTGeneric, nvme.SCPRPOffsetInvalid)
		}
		return append(segs, segment{addr: prp2, length: remaining}), ok
	}

	list := prp2
	if list&0x3 != 0 {
		return nil, nvme.MakeStatus(nvme.SCTGeneric, nvme.SCPRPOffsetInvalid)
	}
	var entry [prpEntrySize]byte
	for remaining > 0 {
		if err := w.space.Read(list, entry[:]); err != nil {
			return nil, nvme.MakeStatus(nvme.SCTGeneric, nvme.SCDataTransferError)
		}
		e := binary.LittleEndian.Uint64(entry[:])

		// The last entry of a list page points to the next list page when
		// more than one page of data remains.
		lastInPage := (list+prpEntrySize)%w.pageSize == 0
		if lastInPage && remaining > w.pageSize {
			if e&0x3 != 0 {
				return nil, nvme.MakeStatus(nvme.SCTGeneric, nvme.SCPRPOffsetInvalid)
			}
			list = e
			continue
		}

		if e%w.pageSize != 0 {
			return nil, nvme.MakeStatus(nvme.SCTGeneric, nvme.SCPRPOffsetInvalid)
		}
		n := min(remaining, w.pageSize)
		segs = append(segs, segment{addr: e, length: n})
		remaining -= n
		list += prpEntrySize
	}
	return segs, ok
}

// gather copies the bytes described by segs into dst.
func gather(space *mem.Space, segs []segment, dst []byte) error {
	var off uint64
	for _, s := range segs {
		if err := space.Read(s.addr, dst[off:off+s.length]); err != nil {
			return err
		}
		off += s.length
	}
	return nil
}

// scatter copies src into the memory described by segs.
func scatter(space *mem.Space, segs []segment, src []byte) error {
	var off uint64
	for _, s := range segs {
		if err := space.Write(s.addr, src[off:off+s.length]); err != nil {
			return err
		}
		off += s.length
	}
	return nil
}
