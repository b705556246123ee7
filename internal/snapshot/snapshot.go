// Package snapshot builds the read-only, normalized view of a repository
// tree that all signal extractors consume. Construction is concurrent but
// the resulting Snapshot is immutable and safe to share without locking.
package snapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"assay/internal/logging"
	"assay/internal/types"
)

// SnapshotError is the fatal per-repository failure mode: the tree could not
// be snapshotted at all. Extractor-level problems never produce one; they
// degrade into error-marker records or failure signals instead.
type SnapshotError struct {
	Root string
	Err  error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot %s: %v", e.Root, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// hashCacheSize bounds the record cache shared across scans. Watch-mode
// re-scans hit it for every unchanged file.
const hashCacheSize = 1024

// Builder constructs Snapshots. A single Builder may be reused across scans;
// its record cache carries over so unchanged files are not re-read.
type Builder struct {
	opts      Options
	cache     *lru.Cache[string, types.FileRecord]
	cacheHits atomic.Int64
}

// NewBuilder returns a Builder with the given options; zero-valued fields
// fall back to defaults.
func NewBuilder(opts Options) *Builder {
	def := DefaultOptions()
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = def.MaxConcurrency
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = def.MaxFileBytes
	}
	if opts.IgnorePatterns == nil {
		opts.IgnorePatterns = def.IgnorePatterns
	}
	cache, err := lru.New[string, types.FileRecord](hashCacheSize)
	if err != nil {
		// Cannot happen with a positive constant size.
		panic(err)
	}
	return &Builder{opts: opts, cache: cache}
}

// CacheHits returns how many records were served from the cache since the
// Builder was created.
func (b *Builder) CacheHits() int64 { return b.cacheHits.Load() }

// Build walks the tree under root and assembles a Snapshot. An empty
// directory yields a Snapshot with zero records and no error. Individual
// unreadable files become error-marker records; only a failure to read the
// tree itself returns a *SnapshotError.
func (b *Builder) Build(ctx context.Context, root string) (*types.Snapshot, error) {
	log := logging.L(logging.CategorySnapshot)
	timer := logging.StartTimer(logging.CategorySnapshot, "build")
	defer timer.Stop()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &SnapshotError{Root: root, Err: err}
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, &SnapshotError{Root: absRoot, Err: err}
	}
	if !info.IsDir() {
		return nil, &SnapshotError{Root: absRoot, Err: errors.New("not a directory")}
	}

	var (
		mu      sync.Mutex
		records []types.FileRecord
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, b.opts.MaxConcurrency)
	startHits := b.cacheHits.Load()

	walkErr := filepath.Walk(absRoot, func(p string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if p == absRoot {
				return err
			}
			// Unreadable entries degrade to error-marker records.
			rel := relPath(absRoot, p)
			mu.Lock()
			records = append(records, types.FileRecord{Path: rel, ReadErr: err.Error()})
			mu.Unlock()
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := info.Name()
		rel := relPath(absRoot, p)

		if info.IsDir() {
			if p == absRoot {
				return nil
			}
			if SkipDir(rel, name, b.opts.IgnorePatterns) {
				return filepath.SkipDir
			}
			return nil
		}

		if isIgnoredRel(rel, name, b.opts.IgnorePatterns) {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		wg.Add(1)
		go func(p, rel string, info os.FileInfo) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			select {
			case <-ctx.Done():
				return
			default:
			}

			// Key on root+rel so the shared cache never crosses repositories.
			key := fmt.Sprintf("%s|%s|%d|%d", absRoot, rel, info.Size(), info.ModTime().UnixNano())
			if rec, ok := b.cache.Get(key); ok {
				b.cacheHits.Add(1)
				mu.Lock()
				records = append(records, rec)
				mu.Unlock()
				return
			}

			rec := b.readFile(p, rel, info)
			if rec.ReadErr == "" {
				b.cache.Add(key, rec)
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
		}(p, rel, info)

		return nil
	})

	wg.Wait()

	if walkErr == nil {
		// Workers bail out silently on cancellation; surface it here so a
		// cancelled build never passes off a partial snapshot as complete.
		walkErr = ctx.Err()
	}
	if walkErr != nil {
		return nil, &SnapshotError{Root: absRoot, Err: walkErr}
	}

	snap := types.NewSnapshot(absRoot, records)
	log.Info("snapshot built",
		zap.String("root", absRoot),
		zap.Int("files", snap.Len()),
		zap.Int("lines", snap.TotalLines()),
		zap.Int64("cache_hits", b.cacheHits.Load()-startHits))
	return snap, nil
}

// readFile loads one file into a record. Oversized files keep hash and size
// metadata only; unreadable files carry the error instead of failing the
// snapshot.
func (b *Builder) readFile(absPath, rel string, info os.FileInfo) types.FileRecord {
	rec := types.FileRecord{Path: rel, Size: info.Size(), IsTest: IsTestFile(rel)}
	lang, conf := detectLanguage(rel)

	if info.Size() > b.opts.MaxFileBytes {
		hash, err := hashFile(absPath)
		if err != nil {
			rec.ReadErr = err.Error()
			return rec
		}
		rec.SHA256 = hash
		rec.Language = lang
		rec.LangConfidence = conf
		return rec
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		rec.ReadErr = err.Error()
		return rec
	}

	sum := sha256.Sum256(data)
	rec.SHA256 = hex.EncodeToString(sum[:])
	rec.IsText = isTextContent(data)
	if rec.IsText {
		rec.Content = string(data)
		rec.Lines = countLines(data)
		if lang == "unknown" {
			if sl, sc := sniffShebang(rec.Content); sl != "" {
				lang, conf = sl, sc
			}
		}
	}
	rec.Language = lang
	rec.LangConfidence = conf
	return rec
}

func relPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// isTextContent applies the git heuristic: a NUL byte in the first 8000
// bytes marks the file binary.
func isTextContent(data []byte) bool {
	probe := data
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return !bytes.ContainsRune(probe, 0)
}

func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}
