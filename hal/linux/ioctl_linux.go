//go:build linux

package linux

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/prpsweep/nvme"
)

// Passthrough ioctl requests from linux/nvme_ioctl.h.
const (
	ioctlID       = 0x4E40     // _IO('N', 0x40)
	ioctlAdminCmd = 0xC0484E41 // _IOWR('N', 0x41, struct nvme_passthru_cmd)
	ioctlIOCmd    = 0xC0484E43 // _IOWR('N', 0x43, struct nvme_passthru_cmd)
)

// passthruCmd mirrors struct nvme_passthru_cmd.
type passthruCmd struct {
	opcode      uint8
	flags       uint8
	rsvd1       uint16
	nsid        uint32
	cdw2        uint32
	cdw3        uint32
	metadata    uint64
	addr        uint64
	metadataLen uint32
	dataLen     uint32
	cdw10       uint32
	cdw11       uint32
	cdw12       uint32
	cdw13       uint32
	cdw14       uint32
	cdw15       uint32
	timeoutMs   uint32
	result      uint32
}

// passthruSize is sizeof(struct nvme_passthru_cmd).
const passthruSize = 72

var _ [passthruSize - unsafe.Sizeof(passthruCmd{})]struct{}

// newPassthru copies the fields of cmd the kernel accepts. PRP1 and MPTR
// carry the user virtual addresses of the data and metadata buffers; the
// kernel builds the PRP entries itself, so PRP2 (CDW8-9) is not
// transferred.
func newPassthru(cmd *nvme.Command, dataLen, metaLen uint32) passthruCmd {
	return passthruCmd{
		opcode:      cmd.Opcode(),
		nsid:        cmd.NSID(),
		cdw2:        cmd.Dword(2),
		cdw3:        cmd.Dword(3),
		metadata:    cmd.MPTR(),
		addr:        cmd.PRP1(),
		metadataLen: metaLen,
		dataLen:     dataLen,
		cdw10:       cmd.Dword(10),
		cdw11:       cmd.Dword(11),
		cdw12:       cmd.Dword(12),
		cdw13:       cmd.Dword(13),
		cdw14:       cmd.Dword(14),
		cdw15:       cmd.Dword(15),
	}
}

// ioctl issues req on fd. A positive return value is the NVMe status
// field of the completion.
func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}
