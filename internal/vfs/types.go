package vfs

import (
	"mountfs/internal/common"
)

// HandleKind tells which backend a FileHandle reads from
type HandleKind int

const (
	// KindVirtual is an in-memory file from the virtual tree
	KindVirtual HandleKind = iota
	// KindLocal is a file on disk below a root or absolute mount
	KindLocal
	// KindPackage is a file served by a PackageManager
	KindPackage
)

func (k HandleKind) String() string {
	switch k {
	case KindVirtual:
		return "virtual"
	case KindLocal:
		return "local"
	case KindPackage:
		return "package"
	default:
		return "unknown"
	}
}

// Package is an archive loaded by a PackageManager
type Package interface {
	Name() string
	Close() error
}

// PackageManager serves read-only files out of archives.
// Paths passed in are canonical logical paths. A miss is reported with
// common.ErrNotFound from OpenFile and false from the query methods.
type PackageManager interface {
	LoadPackage(name string, mode common.SearchFlags) (Package, error)
	ClearPackages(mode common.SearchFlags)
	// FindFiles lists entries of dir whose name matches the target pattern.
	FindFiles(dir, target string, keepPath bool, include common.SearchFlags) (files, dirs []string)
	Size(name string) (uint64, bool)
	Exists(name string, include common.SearchFlags) bool
	FileFlags(name string, include common.SearchFlags) (common.FileFlags, bool)
	OpenFile(name string, binary bool, include, exclude common.SearchFlags) (FileHandle, error)
	Close() error
}

// CustomFileHandler is consulted before any other backend by OpenFile.
// Returning a nil handle falls through to normal resolution.
type CustomFileHandler func(path, mode string) FileHandle

// PathLocator resolves a logical path to a host path, e.g. for a package
// manager that needs to find its archives through the mount search.
type PathLocator interface {
	FindAbsolutePath(path string, include, exclude common.SearchFlags) (string, bool)
}
