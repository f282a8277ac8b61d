// Copyright 2026 MountFS Authors
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

package common

import "errors"

// Lookup and I/O errors. A miss during resolution is reported as ErrNotFound
// and is never logged as a failure.
var (
	ErrNotFound       = errors.New("not found")
	ErrExists         = errors.New("already exists")
	ErrNotDir         = errors.New("not a directory")
	ErrIsDir          = errors.New("is a directory")
	ErrInvalidPath    = errors.New("invalid path")
	ErrInvalidHandle  = errors.New("invalid handle")
	ErrReadOnly       = errors.New("read-only file")
	ErrNoWritableRoot = errors.New("no writable root path")
)

// Invariant violations. These are programmer errors, distinct from the
// lookup errors above.
var (
	ErrReservedIdentifier      = errors.New("reserved root identifier")
	ErrDuplicateRoot           = errors.New("root identifier already registered")
	ErrDuplicatePackageManager = errors.New("package manager already registered")
	ErrClosed                  = errors.New("filesystem service closed")
)

// IsInvariantViolation reports whether err signals misuse of the API rather
// than a missing file or a failed I/O call.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrReservedIdentifier) ||
		errors.Is(err, ErrDuplicateRoot) ||
		errors.Is(err, ErrDuplicatePackageManager)
}
