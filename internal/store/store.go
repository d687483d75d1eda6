// Package store owns the mirrored files on disk: the URL-to-local-path
// map, the downloaded-HTML and downloaded-CSS membership sets the crawl
// loop consults before refetching, and the write/delete paths that
// maintain them.
package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/nrahal/wgor/internal/metadata"
	"github.com/nrahal/wgor/pkg/fileutil"
	"github.com/nrahal/wgor/pkg/hashutil"
)

// Store owns the mirrored-file write path and the URL-to-file
// bookkeeping the crawl loop's reuse and descend checks consult.
type Store struct {
	mu           sync.Mutex
	metadataSink metadata.MetadataSink
	outputDir    string
	hashAlgo     hashutil.HashAlgo

	urlFileMap map[string]string
	htmlSet    map[string]struct{}
	cssSet     map[string]struct{}
	deleted    []string
}

// NewStore builds a Store writing under outputDir, hashing URLs with
// hashAlgo for filenames (pkg/hashutil, wired to lukechampine.com/blake3
// or sha256 per the caller's configuration).
func NewStore(metadataSink metadata.MetadataSink, outputDir string, hashAlgo hashutil.HashAlgo) *Store {
	return &Store{
		metadataSink: metadataSink,
		outputDir:    outputDir,
		hashAlgo:     hashAlgo,
		urlFileMap:   make(map[string]string),
		htmlSet:      make(map[string]struct{}),
		cssSet:       make(map[string]struct{}),
	}
}

// Write persists content fetched from urlString, records its local
// path, and (for HTML/CSS) registers it in the matching membership set.
func (s *Store) Write(urlString string, content []byte, kind ContentKind) (WriteResult, *StorageError) {
	result, err := s.write(urlString, content, kind)
	if err != nil {
		s.metadataSink.RecordError(
			time.Now(),
			"store",
			"Store.Write",
			mapStorageErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, urlString),
				metadata.NewAttr(metadata.AttrWritePath, err.Path),
			},
		)
		return WriteResult{}, err
	}

	s.mu.Lock()
	s.urlFileMap[urlString] = result.Path()
	switch kind {
	case KindHTML:
		s.htmlSet[urlString] = struct{}{}
	case KindCSS:
		s.cssSet[urlString] = struct{}{}
	}
	s.mu.Unlock()

	artifactKind := metadata.ArtifactBinaryAsset
	switch kind {
	case KindHTML:
		artifactKind = metadata.ArtifactHTMLPage
	case KindCSS:
		artifactKind = metadata.ArtifactStylesheet
	}
	s.metadataSink.RecordArtifact(artifactKind, result.Path(), []metadata.Attribute{
		metadata.NewAttr(metadata.AttrWritePath, result.Path()),
		metadata.NewAttr(metadata.AttrURL, urlString),
		metadata.NewAttr(metadata.AttrField, result.URLHash()),
	})
	return result, nil
}

func (s *Store) write(urlString string, content []byte, kind ContentKind) (WriteResult, *StorageError) {
	urlHashFull, err := hashutil.HashString(urlString, s.hashAlgo)
	if err != nil {
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
		}
	}
	urlHash := urlHashFull
	if len(urlHash) > 12 {
		urlHash = urlHash[:12]
	}

	if ferr := fileutil.EnsureDir(s.outputDir); ferr != nil {
		return WriteResult{}, &StorageError{
			Message:   ferr.Error(),
			Retryable: false,
			Cause:     ErrCausePathError,
			Path:      s.outputDir,
		}
	}

	fullPath := filepath.Join(s.outputDir, urlHash+extensionFor(kind))
	if werr := os.WriteFile(fullPath, content, 0644); werr != nil {
		cause := ErrCauseWriteFailure
		retryable := false
		if errors.Is(werr, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
			retryable = true
		}
		return WriteResult{}, &StorageError{
			Message:   werr.Error(),
			Retryable: retryable,
			Cause:     cause,
			Path:      fullPath,
		}
	}

	return newWriteResult(urlHash, fullPath), nil
}

func extensionFor(kind ContentKind) string {
	switch kind {
	case KindHTML:
		return ".html"
	case KindCSS:
		return ".css"
	default:
		return ".bin"
	}
}

// Lookup reports the local file path already recorded for urlString, if
// any.
func (s *Store) Lookup(urlString string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.urlFileMap[urlString]
	return path, ok
}

// IsHTML reports whether urlString's cached file is registered in
// downloaded_html_set.
func (s *Store) IsHTML(urlString string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.htmlSet[urlString]
	return ok
}

// IsCSS reports whether urlString's cached file is registered in
// downloaded_css_set.
func (s *Store) IsCSS(urlString string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cssSet[urlString]
	return ok
}

// Delete unlinks path and registers the deletion with the tracker.
// Unlink failures are diagnostic-only and never fatal.
func (s *Store) Delete(path string) *StorageError {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		storageErr := &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseDeleteFailure,
			Path:      path,
		}
		s.metadataSink.RecordError(
			time.Now(),
			"store",
			"Store.Delete",
			mapStorageErrorToMetadataCause(storageErr),
			storageErr.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrWritePath, path)},
		)
		return storageErr
	}
	s.mu.Lock()
	s.deleted = append(s.deleted, path)
	s.mu.Unlock()
	return nil
}

// DeletedPaths returns every path Delete has successfully removed, in
// order, for diagnostics and tests.
func (s *Store) DeletedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
