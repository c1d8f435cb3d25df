// Copyright 2026 The Rep Authors.
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

// Package d provides the precondition and invariant checks used throughout
// the store, document, array, hash table and dictionary layers.
//
// A violation here means the caller (or the structure itself) is in a state
// the core has no contract to recover from: per the error handling design,
// precondition violations and structural corruption are fatal. Panicking
// keeps that failure from being silently swallowed into a wrong answer.
package d

import "github.com/pkg/errors"

// PanicIfError panics with err if it is non-nil.
func PanicIfError(err error) {
	if err != nil {
		panic(err)
	}
}

// PanicIfTrue panics if b is true.
func PanicIfTrue(b bool, args ...interface{}) {
	if b {
		panic(errors.Errorf("precondition violation: %v", args))
	}
}

// PanicIfFalse panics if b is false.
func PanicIfFalse(b bool, args ...interface{}) {
	if !b {
		panic(errors.Errorf("precondition violation: %v", args))
	}
}

// Chk panics with msg (wrapped via errors.Errorf with args) if cond is false.
// It reads at call sites as an assertion: "check that cond holds."
func Chk(cond bool, msg string, args ...interface{}) {
	if !cond {
		panic(errors.Errorf(msg, args...))
	}
}

// Corrupt panics to signal structural corruption detected by an fsck pass.
// Recovery from a damaged backing file is explicitly out of scope.
func Corrupt(msg string, args ...interface{}) {
	panic(errors.Errorf("structural corruption: "+msg, args...))
}

// Wrap annotates err with msg using the same convention as the rest of the
// core: callers that want a returned (non-fatal) error use this; callers
// that have detected a precondition violation use Chk/PanicIfTrue instead.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}
