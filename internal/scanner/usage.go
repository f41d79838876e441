package scanner

import (
	"context"
	"os"
	"regexp"
	"sort"
	"sync"
)

// Reference patterns. Only literal "#id" targets are found; references
// assembled at runtime (string concatenation, template expressions) are
// invisible to static scanning and are a known limitation. Icons referenced
// that way must be kept by disabling tree-shaking.
var (
	// <use href="#id"> and <use xlink:href="#id"> in markup.
	markupRefPattern = regexp.MustCompile(`<use\b[^>]*?\s(?:xlink:)?href\s*=\s*["']#([^"'\s>]+)["']`)

	// href / xlink:href / xlinkHref followed by "#id" in non-markup source:
	// object keys, JSX props, setAttribute calls.
	genericRefPattern = regexp.MustCompile("(?:xlink:?)?[hH]ref[\"']?\\s*[:=,]\\s*[\"'`]#([^\"'`\\s]+)[\"'`]")

	identifierPattern = regexp.MustCompile(`^[a-zA-Z][\w-]*$`)
)

// IdentifierSet is a set of referenced symbol identifiers.
type IdentifierSet map[string]struct{}

// NewIdentifierSet creates a set holding ids.
func NewIdentifierSet(ids ...string) IdentifierSet {
	set := make(IdentifierSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Add inserts id.
func (s IdentifierSet) Add(id string) { s[id] = struct{}{} }

// Has reports membership.
func (s IdentifierSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Merge adds every member of other.
func (s IdentifierSet) Merge(other IdentifierSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s IdentifierSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidIdentifier reports whether id may name a symbol reference.
func ValidIdentifier(id string) bool {
	return identifierPattern.MatchString(id)
}

// ScanContent extracts the identifiers referenced in content.
func ScanContent(content string) IdentifierSet {
	set := make(IdentifierSet)
	for _, pattern := range []*regexp.Regexp{markupRefPattern, genericRefPattern} {
		for _, match := range pattern.FindAllStringSubmatch(content, -1) {
			if ValidIdentifier(match[1]) {
				set.Add(match[1])
			}
		}
	}
	return set
}

// FindUsedIdentifiersInFile scans a single file. Read failures are logged
// and yield an empty set.
func (s *Scanner) FindUsedIdentifiersInFile(ctx context.Context, path string) IdentifierSet {
	content, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn(ctx, err, "Failed to read file for usage scan", "file", path)
		return make(IdentifierSet)
	}
	return ScanContent(string(content))
}

// FindUsedIdentifiers scans every file under root with one of exts and
// returns the union of referenced identifiers.
func (s *Scanner) FindUsedIdentifiers(ctx context.Context, root string, exts []string) IdentifierSet {
	files := s.FindFilesByExtension(ctx, root, exts, DefaultMaxDepth)
	return s.ScanFiles(ctx, files)
}

// ScanJob is a unit of work for the usage scan worker pool.
type ScanJob struct {
	filePath string
	result   chan<- ScanResult
}

// ScanResult carries the identifiers found in one file.
type ScanResult struct {
	filePath string
	ids      IdentifierSet
}

// ScanFiles scans files concurrently on a bounded worker pool.
func (s *Scanner) ScanFiles(ctx context.Context, files []string) IdentifierSet {
	used := make(IdentifierSet)
	if len(files) == 0 {
		return used
	}

	// Small batches are not worth the goroutine overhead.
	if len(files) <= 2 {
		for _, file := range files {
			used.Merge(s.FindUsedIdentifiersInFile(ctx, file))
		}
		return used
	}

	jobs := make(chan ScanJob)
	results := make(chan ScanResult, len(files))

	workers := s.workers
	if workers > len(files) {
		workers = len(files)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				job.result <- ScanResult{
					filePath: job.filePath,
					ids:      s.FindUsedIdentifiersInFile(ctx, job.filePath),
				}
			}
		}()
	}

	for _, file := range files {
		jobs <- ScanJob{filePath: file, result: results}
	}
	close(jobs)
	wg.Wait()
	close(results)

	for result := range results {
		s.logger.Debug(ctx, "Scanned file for icon references",
			"file", result.filePath, "count", len(result.ids))
		used.Merge(result.ids)
	}

	return used
}
