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

// Package recovery implements the roll-forward fsync recovery pass: it
// walks the checkpoint's fsync chain and reapplies the inode, quota, data,
// and directory changes it recorded.
package recovery

import "errors"

// Kind is a semantic error classification (spec.md §7), distinct from the
// Go error chain used to carry it. Each kind maps to a fixed handling
// policy in the pass orchestrator and in individual components.
type Kind int

const (
	// KindNotFound means iget_retry found no inode a DF anchor ever named;
	// the caller should skip the entry silently, not treat it as failure.
	KindNotFound Kind = iota
	// KindOutOfMemory means a page or cache allocation failed; retried
	// with a cooperative wait by the caller.
	KindOutOfMemory
	// KindIOError means a page or summary read failed; aborts the pass.
	KindIOError
	// KindCorrupted means an epoch, footer, or ino mismatch, an invalid
	// POR block address, or a looped chain was detected; aborts the pass.
	KindCorrupted
	// KindNoSpace means a block reservation failed during apply; a
	// programming error unless fault injection is enabled.
	KindNoSpace
	// KindQuotaError means a quota transfer failed; the caller tags
	// quota-needs-repair and propagates.
	KindQuotaError
	// KindNameTooLong means a raw inode's namelen exceeds NAME_MAX.
	KindNameTooLong
	// KindInvalid covers other filename reconstruction failures.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindOutOfMemory:
		return "out_of_memory"
	case KindIOError:
		return "io_error"
	case KindCorrupted:
		return "corrupted"
	case KindNoSpace:
		return "no_space"
	case KindQuotaError:
		return "quota_error"
	case KindNameTooLong:
		return "name_too_long"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// handling policy with errors.As instead of string matching.
type Error struct {
	Kind  Kind
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// newErr builds an *Error, the single constructor every component uses so
// Kind is never forgotten.
func newErr(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
