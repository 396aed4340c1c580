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

package pipeline

import (
	"sync"
	"time"
)

// A Snapshot is a consistent view of a run's live counters.
type Snapshot struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`

	OcrActive int `json:"ocr_active"`
	LlmActive int `json:"llm_active"`
	InQueue   int `json:"in_queue"`

	// the most recently started file in either stage (best effort)
	CurrentFile string    `json:"current_file"`
	StartedAt   time.Time `json:"started_at"`
	IsRunning   bool      `json:"is_running"`
}

// run counters written by many workers and read by pollers; the lock is
// held only for the copy, so a 10 Hz poller never contends noticeably
type statistics struct {
	mutex    sync.Mutex
	snapshot Snapshot
}

func (s *statistics) reset(total int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.snapshot = Snapshot{
		Total:     total,
		StartedAt: time.Now(),
		IsRunning: true,
	}
}

func (s *statistics) update(apply func(*Snapshot)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	apply(&s.snapshot)
}

func (s *statistics) read() Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	snapshot := s.snapshot
	// a producer increments InQueue only after its send lands, so a fast
	// consumer's decrement can momentarily drive the counter below zero;
	// never expose that
	if snapshot.InQueue < 0 {
		snapshot.InQueue = 0
	}
	return snapshot
}
