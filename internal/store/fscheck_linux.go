//go:build linux

package store

import (
	"fmt"
	"syscall"
)

// statfs(2) f_type magic numbers for the network filesystems db_path is
// rejected on; see statfs(2) and the Linux kernel's magic.h.
const (
	linuxNFSMagic  = 0x6969
	linuxCIFSMagic = 0xFF534D42
	linuxSMBMagic  = 0x517B
	linuxSMB2Magic = 0xFE534D42
)

// detectFilesystemType reports the filesystem db_path resides on, so
// ValidateFilesystem can reject NFS/CIFS/SMB mounts before SQLite's file
// locking silently misbehaves on them.
func detectFilesystemType(path string) (string, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return "", fmt.Errorf("statfs %q: %w", path, err)
	}

	switch uint64(stat.Type) {
	case linuxNFSMagic:
		return "nfs", nil
	case linuxCIFSMagic:
		return "cifs", nil
	case linuxSMBMagic:
		return "smbfs", nil
	case linuxSMB2Magic:
		return "smb2", nil
	default:
		return fmt.Sprintf("0x%x", uint64(stat.Type)), nil
	}
}
