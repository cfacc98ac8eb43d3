package etc

import (
	"encoding/binary"
	"encoding/hex"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxDigestSize fits every digest algorithm fs-verity supports.
const maxDigestSize = 64

// measureVerity returns the fs-verity digest of the file at path. The
// second return value is false when the file has no verity enabled or the
// filesystem does not support it.
func measureVerity(path string) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	// struct fsverity_digest { u16 algorithm; u16 size; u8 digest[]; }
	buf := make([]byte, 4+maxDigestSize)
	binary.LittleEndian.PutUint16(buf[2:4], maxDigestSize)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(),
		uintptr(unix.FS_IOC_MEASURE_VERITY), uintptr(unsafe.Pointer(&buf[0])))
	switch errno {
	case 0:
	case unix.ENODATA, unix.EOPNOTSUPP, unix.ENOTTY:
		return "", false, nil
	default:
		return "", false, errno
	}

	size := binary.LittleEndian.Uint16(buf[2:4])
	return hex.EncodeToString(buf[4 : 4+size]), true, nil
}
