//go:build !darwin && !linux

package store

import "fmt"

// detectFilesystemType has no statfs-based implementation outside
// linux/darwin; ValidateFilesystem surfaces this error as a doctor/serve
// failure rather than silently assuming db_path is safe on a platform it
// cannot inspect.
func detectFilesystemType(path string) (string, error) {
	return "", fmt.Errorf("filesystem detection is unsupported on this platform")
}
