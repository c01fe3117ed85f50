package storage

import (
	"os"
	"path/filepath"
)

// sidecarSuffixes are the files SQLite keeps next to a WAL-mode database.
var sidecarSuffixes = []string{"-wal", "-shm"}

// StoreDiskUsage returns the on-disk size of the store at dbPath including its WAL sidecars.
func StoreDiskUsage(dbPath string) (int64, error) {
	paths := []string{dbPath}
	for _, suffix := range sidecarSuffixes {
		paths = append(paths, dbPath+suffix)
	}
	return DiskUsageBytes(paths...)
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing paths are skipped; other errors are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
