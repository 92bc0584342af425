package storage

import (
	"os"
	"path/filepath"
)

// DiskUsage reports bytes used per named path and in total.
type DiskUsage struct {
	Paths map[string]int64 `json:"paths"`
	Total int64            `json:"total"`
}

// DiskUsageBytes sums the size of the given files or directories (recursively).
// Missing paths contribute 0; other errors are returned.
func DiskUsageBytes(paths map[string]string) (*DiskUsage, error) {
	usage := &DiskUsage{Paths: make(map[string]int64, len(paths))}
	for name, p := range paths {
		if p == "" {
			continue
		}
		n, err := pathSize(p)
		if err != nil {
			return nil, err
		}
		usage.Paths[name] = n
		usage.Total += n
	}
	return usage, nil
}

func pathSize(p string) (int64, error) {
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
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
	return total, err
}
