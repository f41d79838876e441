package build

import (
	"context"
	"encoding/hex"
	"os"
	"strconv"
	"sync"

	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/zeebo/blake3"
)

// FingerprintLength is the number of hex characters in a fingerprint.
const FingerprintLength = 16

// maxConcurrentStats bounds parallel stat calls.
const maxConcurrentStats = 8

// ChangeDetector summarizes a file set into a short fingerprint so a
// rebuild can be skipped when nothing changed.
type ChangeDetector struct {
	cache  *ParseCache
	logger logging.Logger
	stat   func(string) (os.FileInfo, error)
}

// NewChangeDetector creates a detector that purges cache entries of files
// found missing.
func NewChangeDetector(cache *ParseCache, logger logging.Logger) *ChangeDetector {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ChangeDetector{
		cache:  cache,
		logger: logger.WithComponent("fingerprint"),
		stat:   os.Stat,
	}
}

// Fingerprint hashes "path:mtime" for every file in paths, in order. Files
// that cannot be stat'ed are left out of the digest and their parse cache
// entries are removed.
func (d *ChangeDetector) Fingerprint(ctx context.Context, paths []string) string {
	mtimes := make([]int64, len(paths))
	present := make([]bool, len(paths))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, maxConcurrentStats)

	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			info, err := d.stat(path)
			if err != nil {
				return
			}
			mtimes[i] = info.ModTime().UnixNano()
			present[i] = true
		}(i, path)
	}
	wg.Wait()

	hasher := blake3.New()
	buf := make([]byte, 0, 256)
	for i, path := range paths {
		if !present[i] {
			if d.cache != nil {
				removed := d.cache.InvalidatePath(path)
				d.logger.Debug(ctx, "Icon disappeared, purged cache entries", "file", path, "removed", removed)
			}
			continue
		}
		buf = buf[:0]
		buf = append(buf, path...)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, mtimes[i], 10)
		buf = append(buf, '\n')
		_, _ = hasher.Write(buf)
	}

	sum := hasher.Sum(nil)
	return hex.EncodeToString(sum[:FingerprintLength/2])
}
