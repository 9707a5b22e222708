// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncLogger decouples log writers from the underlying sink (a
// lumberjack.Logger rotating a file, typically) so that a slow disk
// never stalls the single cooperative-scheduling loop spec.md §5
// requires. Writes are queued; a background goroutine drains them in
// order. A full queue drops the message rather than blocking the
// caller.
type AsyncLogger struct {
	dest io.Writer

	msgs chan []byte
	done chan struct{}
	wg   sync.WaitGroup
}

// NewAsyncLogger starts the background writer goroutine and returns
// an AsyncLogger that buffers up to bufSize pending writes to dest.
func NewAsyncLogger(dest io.Writer, bufSize int) *AsyncLogger {
	a := &AsyncLogger{
		dest: dest,
		msgs: make(chan []byte, bufSize),
		done: make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	defer a.wg.Done()
	for msg := range a.msgs {
		a.dest.Write(msg)
	}
	close(a.done)
}

// Write copies p and enqueues it for the background writer, always
// reporting len(p), nil — matching the fire-and-forget contract a
// log.Logger expects of its output writer. A full queue drops the
// message and logs a warning to stderr instead of blocking.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)

	select {
	case a.msgs <- buf:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close stops accepting new writes, drains whatever is already
// queued, and closes dest if it implements io.Closer.
func (a *AsyncLogger) Close() error {
	close(a.msgs)
	<-a.done
	a.wg.Wait()

	if closer, ok := a.dest.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
