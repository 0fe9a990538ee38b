// Copyright 2025 Nguyen Nhat Nguyen
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

package harness

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/sanity-io/litter"
)

// Frames from these function prefixes are dropped from assertion traces.
var libraryFramePrefixes = []string{
	"runtime.",
	"testing.",
	"github.com/stretchr/testify/",
	"go.temporal.io/",
	"golang.org/x/sync/",
	"github.com/ngnhng/features/harness.(*requireTestingPanic)",
	"github.com/ngnhng/features/harness.assertTestingFunc",
	"github.com/ngnhng/features/harness.captureFrames",
	"github.com/ngnhng/features/harness.(*Runner).recoverAssertion",
	"github.com/ngnhng/features/harness.(*Runner).CheckAssertion",
}

// CheckAssertion turns the result of a Runner.Assert call into an error.
func (r *Runner) CheckAssertion(result bool) error {
	if result {
		return nil
	}
	msg := "assertion failed"
	if r.LastAssertErr != nil {
		msg = r.LastAssertErr.Error()
	}
	return NewAssertionError(msg, captureFrames(2))
}

// Dump renders v for failure messages.
func Dump(v any) string {
	return litter.Options{Compact: true, HidePrivateFields: true}.Sdump(v)
}

// recoverAssertion runs fn, turning a Runner.Require panic into an *AssertionError.
func (r *Runner) recoverAssertion(fn func() error) (err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		frames := captureFrames(3)
		if recErr, ok := rec.(error); ok {
			var assertErr *AssertionError
			if errors.As(recErr, &assertErr) {
				err = assertErr
				return
			}
			err = NewAssertionError(recErr.Error(), frames)
			return
		}
		err = NewAssertionError(fmt.Sprintf("panic: %v", rec), frames)
	}()
	return fn()
}

// captureFrames returns "function file:line" for each caller frame above
// skip, with library frames removed.
func captureFrames(skip int) []string {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+1, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var out []string
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !isLibraryFrame(frame.Function) {
			out = append(out, fmt.Sprintf("%s %s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return out
}

func isLibraryFrame(function string) bool {
	for _, prefix := range libraryFramePrefixes {
		if strings.HasPrefix(function, prefix) {
			return true
		}
	}
	return false
}

type assertTestingFunc func(format string, args ...any)

func (a assertTestingFunc) Errorf(format string, args ...any) { a(format, args...) }

type requireTestingPanic struct {
	lastErr     error
	lastErrLock sync.RWMutex
}

func (r *requireTestingPanic) Errorf(format string, args ...any) {
	r.lastErrLock.Lock()
	defer r.lastErrLock.Unlock()
	r.lastErr = fmt.Errorf(format, args...)
}

func (r *requireTestingPanic) FailNow() {
	r.lastErrLock.RLock()
	defer r.lastErrLock.RUnlock()
	if r.lastErr != nil {
		panic(NewAssertionError(r.lastErr.Error(), captureFrames(2)))
	}
}
