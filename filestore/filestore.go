// Copyright (c) 2025 The Deedpipe Project and its Contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package filestore owns the on-disk folders a document moves through:
//
//	inbox/      <batch_id>__<document_id>.pdf   admitted, awaiting processing
//	processed/  <document_id>.pdf               extraction succeeded
//	failed/     <batch_id>__<document_id>.pdf   extraction failed or cancelled
//	retry_fee/                                  reserved for the fee re-check pass
//
// Every operation either succeeds or leaves the filesystem unchanged; a
// partial move is never observable.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

// separates the batch id from the document id in inbox and failed filenames
const batchSeparator = "__"

// the outcome of processing a document, used to route its source file
type Outcome int

const (
	Succeeded Outcome = iota
	Failed
	Cancelled
)

// a file admitted to the inbox
type Admission struct {
	// the document id computed from the source filename's stem
	DocumentId string
	// the file's path inside the inbox
	Path string
}

// A Store manages the four working directories under a single root.
type Store struct {
	inbox, processed, failed, retryFee string
}

// Creates a store rooted at the given data directory, creating the working
// directories if they don't yet exist.
func NewStore(dataDir string) (*Store, error) {
	s := &Store{
		inbox:     filepath.Join(dataDir, "inbox"),
		processed: filepath.Join(dataDir, "processed"),
		failed:    filepath.Join(dataDir, "failed"),
		retryFee:  filepath.Join(dataDir, "retry_fee"),
	}
	for _, dir := range []string{s.inbox, s.processed, s.failed, s.retryFee} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &IOError{Op: "create directory", Path: dir, Message: err.Error()}
		}
	}
	return s, nil
}

// the inbox directory (informational, e.g. for service responses)
func (s *Store) InboxDir() string {
	return s.inbox
}

// Computes the document id for a source file: the filename stem, with any
// previous batch prefix stripped (so a retried file keeps its identity).
func DocumentId(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.LastIndex(stem, batchSeparator); i >= 0 {
		stem = stem[i+len(batchSeparator):]
	}
	return stem
}

// Admits the given source files into the inbox under the given batch id,
// returning the document ids assigned and the admitted paths. Document ids
// are filename stems, made unique within the batch by appending _<n> on
// collision. Each file is moved atomically (renamed within a volume,
// copy-then-rename otherwise).
func (s *Store) Admit(batchId string, srcPaths []string) ([]Admission, error) {
	admitted := make([]Admission, 0, len(srcPaths))
	seen := make(map[string]int)

	for _, src := range srcPaths {
		docId := DocumentId(src)
		if n, found := seen[docId]; found {
			seen[docId] = n + 1
			docId = fmt.Sprintf("%s_%d", docId, n)
		} else {
			seen[docId] = 1
		}

		dest := filepath.Join(s.inbox, batchId+batchSeparator+docId+".pdf")
		if err := moveFile(src, dest); err != nil {
			return admitted, err
		}
		admitted = append(admitted, Admission{DocumentId: docId, Path: dest})
	}
	return admitted, nil
}

// Returns a snapshot of the inbox files belonging to the given batch, in
// stable enumeration order. Idempotent.
func (s *Store) Claim(batchId string) ([]string, error) {
	return listByBatch(s.inbox, batchId)
}

// Routes a processed source file out of the inbox: to processed/ (under its
// original document name) on success, or to failed/ (keeping the batch
// prefix, so failures can be collected by batch) otherwise. An existing file
// at the destination is never overwritten; a monotonic suffix is appended
// instead.
func (s *Store) Route(sourcePath string, outcome Outcome) error {
	var dest string
	switch outcome {
	case Succeeded:
		dest = filepath.Join(s.processed, DocumentId(sourcePath)+".pdf")
	case Failed, Cancelled:
		dest = filepath.Join(s.failed, filepath.Base(sourcePath))
	default:
		return &IOError{Op: "route", Path: sourcePath,
			Message: fmt.Sprintf("unknown outcome %d", outcome)}
	}
	return moveFile(sourcePath, uniquePath(dest))
}

// Enumerates the files in failed/, optionally restricted to a single batch
// (batchId == "" means all).
func (s *Store) CollectFailed(batchId string) ([]string, error) {
	return listByBatch(s.failed, batchId)
}

// lists files in dir whose name carries the given batch prefix ("" matches
// everything), sorted for stable enumeration order
func listByBatch(dir, batchId string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &IOError{Op: "list", Path: dir, Message: err.Error()}
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if batchId != "" && !strings.HasPrefix(entry.Name(), batchId+batchSeparator) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// returns dest if nothing occupies it, otherwise the first free
// dest_<n> variant
func uniquePath(dest string) string {
	if _, err := os.Stat(dest); err != nil {
		return dest
	}
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

// Moves src to dest atomically: rename within a filesystem volume, falling
// back to copy-into-temp-then-rename across volumes. On any error the
// destination never holds a partial file.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	} else if !isCrossDevice(err) {
		return &IOError{Op: "move", Path: src, Message: err.Error()}
	}

	// cross-device: copy to a temp file beside the destination, rename it
	// into place, then remove the source
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".move-*")
	if err != nil {
		return &IOError{Op: "move", Path: src, Message: err.Error()}
	}
	tmpName := tmp.Name()
	in, err := os.Open(src)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &IOError{Op: "move", Path: src, Message: err.Error()}
	}
	_, err = io.Copy(tmp, in)
	in.Close()
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, dest)
	}
	if err != nil {
		os.Remove(tmpName)
		return &IOError{Op: "move", Path: src, Message: err.Error()}
	}
	if err := os.Remove(src); err != nil {
		// the destination is whole; losing the source removal only leaves a
		// duplicate behind
		return &IOError{Op: "remove source", Path: src, Message: err.Error()}
	}
	return nil
}

// reports whether a rename failed because src and dest live on different
// filesystem volumes
func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	return errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV)
}
