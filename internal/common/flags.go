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

import (
	"strconv"
	"strings"
)

// SearchFlags selects which backends a lookup consults and how mounts are
// filtered. Combinations are bitwise OR; exclusion is AND-NOT.
type SearchFlags uint32

const (
	SearchNone     SearchFlags = 0
	SearchVirtual  SearchFlags = 1
	SearchPackage  SearchFlags = 2
	SearchLocal    SearchFlags = 4
	SearchNoMounts SearchFlags = 8

	// SearchLocalRoot searches only the root directories themselves.
	SearchLocalRoot = SearchNoMounts | SearchLocal
	// SearchAll enables every backend with mounts.
	SearchAll = ^SearchNoMounts
)

// Includes reports whether every bit of flag is set.
func (f SearchFlags) Includes(flag SearchFlags) bool {
	return flag != 0 && f&flag == flag
}

// Any reports whether f and other share at least one bit.
func (f SearchFlags) Any(other SearchFlags) bool {
	return f&other != 0
}

// With returns f with the bits of flag set.
func (f SearchFlags) With(flag SearchFlags) SearchFlags {
	return f | flag
}

// Without returns f with the bits of flag cleared.
func (f SearchFlags) Without(flag SearchFlags) SearchFlags {
	return f &^ flag
}

func (f SearchFlags) String() string {
	if f == SearchNone {
		return "none"
	}
	if f == SearchAll {
		return "all"
	}
	var parts []string
	for _, n := range []struct {
		flag SearchFlags
		name string
	}{
		{SearchVirtual, "virtual"},
		{SearchPackage, "package"},
		{SearchLocal, "local"},
		{SearchNoMounts, "nomounts"},
	} {
		if f.Includes(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if groups := f &^ (SearchVirtual | SearchPackage | SearchLocal | SearchNoMounts); groups != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(groups), 16))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseSearchFlags parses a "|" or "," separated list of flag names as
// produced by SearchFlags.String. Numbers ("0x100", "256") add user-defined
// group bits.
func ParseSearchFlags(s string) (SearchFlags, bool) {
	var f SearchFlags
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return r == '|' || r == ',' }) {
		switch strings.TrimSpace(tok) {
		case "none":
		case "virtual":
			f |= SearchVirtual
		case "package":
			f |= SearchPackage
		case "local":
			f |= SearchLocal
		case "nomounts":
			f |= SearchNoMounts
		case "localroot":
			f |= SearchLocalRoot
		case "all":
			f |= SearchAll
		default:
			n, err := strconv.ParseUint(strings.TrimSpace(tok), 0, 32)
			if err != nil {
				return 0, false
			}
			f |= SearchFlags(n)
		}
	}
	return f, true
}

// FileFlags describes a resolved entry.
type FileFlags uint32

const (
	FileNone       FileFlags = 0
	FilePackage    FileFlags = 1
	FileCompressed FileFlags = 2
	FileDirectory  FileFlags = 4
	FileEncrypted  FileFlags = 8
	FileVirtual    FileFlags = 16
	FileReadOnly   FileFlags = 32
	FileInvalid    FileFlags = 2048
)

// Has reports whether every bit of flag is set.
func (f FileFlags) Has(flag FileFlags) bool {
	return flag != 0 && f&flag == flag
}

// Valid reports whether the flags describe an existing entry.
func (f FileFlags) Valid() bool {
	return f&FileInvalid == 0
}

// IsFile reports whether the flags describe an existing non-directory entry.
func (f FileFlags) IsFile() bool {
	return f&(FileInvalid|FileDirectory) == 0
}

// IsDir reports whether the flags describe an existing directory.
func (f FileFlags) IsDir() bool {
	return f.Valid() && f.Has(FileDirectory)
}

// OpenMode is the parsed form of an fopen-style mode string.
type OpenMode struct {
	Write  bool // w, a or +
	Append bool
	Binary bool
}

// ParseMode parses an fopen-style mode string ("r", "rb", "w+", "ab", ...).
// Any of w, a or + makes the mode a write mode; b makes it binary.
func ParseMode(mode string) OpenMode {
	var m OpenMode
	for _, c := range mode {
		switch c {
		case 'w', 'W', '+':
			m.Write = true
		case 'a', 'A':
			m.Write = true
			m.Append = true
		case 'b', 'B':
			m.Binary = true
		}
	}
	return m
}

// IsWriteMode reports whether mode opens a file for writing.
func IsWriteMode(mode string) bool { return ParseMode(mode).Write }

// IsBinaryMode reports whether mode opens a file in binary mode.
func IsBinaryMode(mode string) bool { return ParseMode(mode).Binary }

// FileMode is the typed form of an open mode.
type FileMode uint8

const (
	ModeRead FileMode = 1 << iota
	ModeWrite
	ModeAppend
	ModeBinary
)

// ModeString converts m into the equivalent mode string. Append wins over
// write; a mode that asks for both read and write gets "+".
func (m FileMode) ModeString() string {
	var s string
	switch {
	case m&ModeAppend != 0:
		s = "a"
	case m&ModeWrite != 0:
		s = "w"
	default:
		s = "r"
	}
	if m&ModeRead != 0 && s != "r" {
		s += "+"
	}
	if m&ModeBinary != 0 {
		s += "b"
	}
	return s
}
