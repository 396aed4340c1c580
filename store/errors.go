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

package store

import "fmt"

// This error type indicates that a database operation failed.
type DatabaseError struct {
	Op, Message string
}

func (e DatabaseError) Error() string {
	return fmt.Sprintf("database error (%s): %s", e.Op, e.Message)
}

// This error type indicates that a requested row doesn't exist.
type NotFoundError struct {
	Kind, Id string
}

func (e NotFoundError) Error() string {
	if e.Id == "" {
		return fmt.Sprintf("no %s found", e.Kind)
	}
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Id)
}

// This error type indicates an attempt to move a batch to a state its
// lifecycle doesn't allow from where it is.
type StateTransitionError struct {
	BatchId, Status, Message string
}

func (e StateTransitionError) Error() string {
	return fmt.Sprintf("cannot move batch %s to %s: %s", e.BatchId, e.Status, e.Message)
}
