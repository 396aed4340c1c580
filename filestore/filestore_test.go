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

package filestore

import (
	"log"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

// temporary testing directory
var TESTING_DIR string

// creates a dummy PDF with the given name in the given directory, returning
// its path
func writePdf(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte("%PDF-1.4 test"), 0644)
	assert.Nil(t, err)
	return path
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir, err := os.MkdirTemp(TESTING_DIR, "store-")
	assert.Nil(t, err)
	store, err := NewStore(dir)
	assert.Nil(t, err)
	return store, dir
}

func TestDocumentId(t *testing.T) {
	assert.Equal(t, "DEED-123", DocumentId("/uploads/DEED-123.pdf"))
	// a previously admitted file keeps its identity on re-admission
	assert.Equal(t, "DEED-123", DocumentId("/failed/BATCH-X__DEED-123.pdf"))
}

func TestAdmitAssignsIdsAndMovesFiles(t *testing.T) {
	store, dir := newTestStore(t)
	uploads := filepath.Join(dir, "uploads")
	os.Mkdir(uploads, 0755)

	a := writePdf(t, uploads, "A.pdf")
	b := writePdf(t, uploads, "B.pdf")

	admitted, err := store.Admit("BATCH-1", []string{a, b})
	assert.Nil(t, err)
	assert.Len(t, admitted, 2)
	assert.Equal(t, "A", admitted[0].DocumentId)
	assert.Equal(t, "B", admitted[1].DocumentId)

	// sources are gone, inbox copies exist under prefixed names
	_, err = os.Stat(a)
	assert.NotNil(t, err)
	_, err = os.Stat(filepath.Join(store.InboxDir(), "BATCH-1__A.pdf"))
	assert.Nil(t, err)
}

func TestAdmitDisambiguatesCollidingStems(t *testing.T) {
	store, dir := newTestStore(t)
	up1 := filepath.Join(dir, "up1")
	up2 := filepath.Join(dir, "up2")
	os.Mkdir(up1, 0755)
	os.Mkdir(up2, 0755)

	a1 := writePdf(t, up1, "A.pdf")
	a2 := writePdf(t, up2, "A.pdf")

	admitted, err := store.Admit("BATCH-1", []string{a1, a2})
	assert.Nil(t, err)
	assert.Equal(t, "A", admitted[0].DocumentId)
	assert.Equal(t, "A_1", admitted[1].DocumentId)
}

func TestClaimReturnsOnlyMatchingBatch(t *testing.T) {
	store, dir := newTestStore(t)
	uploads := filepath.Join(dir, "uploads")
	os.Mkdir(uploads, 0755)

	a := writePdf(t, uploads, "A.pdf")
	b := writePdf(t, uploads, "B.pdf")
	_, err := store.Admit("BATCH-1", []string{a})
	assert.Nil(t, err)
	_, err = store.Admit("BATCH-2", []string{b})
	assert.Nil(t, err)

	claimed, err := store.Claim("BATCH-1")
	assert.Nil(t, err)
	assert.Len(t, claimed, 1)
	assert.Contains(t, claimed[0], "BATCH-1__A.pdf")

	// Claim is idempotent
	again, err := store.Claim("BATCH-1")
	assert.Nil(t, err)
	assert.Equal(t, claimed, again)
}

func TestRouteSucceededStripsBatchPrefix(t *testing.T) {
	store, dir := newTestStore(t)
	uploads := filepath.Join(dir, "uploads")
	os.Mkdir(uploads, 0755)

	a := writePdf(t, uploads, "A.pdf")
	admitted, err := store.Admit("BATCH-1", []string{a})
	assert.Nil(t, err)

	err = store.Route(admitted[0].Path, Succeeded)
	assert.Nil(t, err)
	_, err = os.Stat(filepath.Join(dir, "processed", "A.pdf"))
	assert.Nil(t, err)
}

func TestRouteFailedKeepsBatchPrefix(t *testing.T) {
	store, dir := newTestStore(t)
	uploads := filepath.Join(dir, "uploads")
	os.Mkdir(uploads, 0755)

	a := writePdf(t, uploads, "A.pdf")
	admitted, err := store.Admit("BATCH-1", []string{a})
	assert.Nil(t, err)

	err = store.Route(admitted[0].Path, Failed)
	assert.Nil(t, err)

	failed, err := store.CollectFailed("BATCH-1")
	assert.Nil(t, err)
	assert.Len(t, failed, 1)
	assert.Contains(t, failed[0], "BATCH-1__A.pdf")
}

func TestRouteNeverOverwrites(t *testing.T) {
	store, dir := newTestStore(t)
	uploads := filepath.Join(dir, "uploads")
	os.Mkdir(uploads, 0755)

	// two different batches admit a file with the same stem; both succeed
	a1 := writePdf(t, uploads, "A.pdf")
	admitted1, err := store.Admit("BATCH-1", []string{a1})
	assert.Nil(t, err)
	err = store.Route(admitted1[0].Path, Succeeded)
	assert.Nil(t, err)

	a2 := writePdf(t, uploads, "A.pdf")
	admitted2, err := store.Admit("BATCH-2", []string{a2})
	assert.Nil(t, err)
	err = store.Route(admitted2[0].Path, Succeeded)
	assert.Nil(t, err)

	_, err = os.Stat(filepath.Join(dir, "processed", "A.pdf"))
	assert.Nil(t, err)
	_, err = os.Stat(filepath.Join(dir, "processed", "A_1.pdf"))
	assert.Nil(t, err)
}

func TestCollectFailedWithoutBatchReturnsEverything(t *testing.T) {
	store, dir := newTestStore(t)
	uploads := filepath.Join(dir, "uploads")
	os.Mkdir(uploads, 0755)

	a := writePdf(t, uploads, "A.pdf")
	b := writePdf(t, uploads, "B.pdf")
	admitted1, _ := store.Admit("BATCH-1", []string{a})
	admitted2, _ := store.Admit("BATCH-2", []string{b})
	assert.Nil(t, store.Route(admitted1[0].Path, Failed))
	assert.Nil(t, store.Route(admitted2[0].Path, Cancelled))

	failed, err := store.CollectFailed("")
	assert.Nil(t, err)
	assert.Len(t, failed, 2)
}

func TestIsCrossDevice(t *testing.T) {
	exdev := &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EXDEV}
	assert.True(t, isCrossDevice(exdev))

	denied := &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EACCES}
	assert.False(t, isCrossDevice(denied))
	assert.False(t, isCrossDevice(os.ErrNotExist))
}

func TestMain(m *testing.M) {
	var err error
	TESTING_DIR, err = os.MkdirTemp(os.TempDir(), "deedpipe-filestore-tests-")
	if err != nil {
		log.Panicf("Couldn't create testing directory: %s", err)
	}
	status := m.Run()
	os.RemoveAll(TESTING_DIR)
	os.Exit(status)
}
