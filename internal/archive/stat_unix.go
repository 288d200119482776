package archive

import (
	"fmt"
	"os"
	"syscall"
)

// statIdentity returns the (device, inode) pair identifying the storage
// object behind path.
func statIdentity(path string) (uint64, uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, fmt.Errorf("no stat information for %s", path)
	}
	return uint64(sys.Dev), sys.Ino, nil
}

// SameInode reports whether two paths denote the same storage object.
func SameInode(a, b string) (bool, error) {
	devA, inoA, err := statIdentity(a)
	if err != nil {
		return false, err
	}
	devB, inoB, err := statIdentity(b)
	if err != nil {
		return false, err
	}
	return devA == devB && inoA == inoB, nil
}
