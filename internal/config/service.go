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

package config

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"mountfs/internal/archive"
	"mountfs/internal/common"
	"mountfs/internal/vfs"
)

// Package manager names registered by NewService, in search order.
const (
	ZipManagerName  = "zip"
	CPIOManagerName = "cpio"
)

// NewService builds a Service from s: the primary root, the secondary
// roots, the mounts, one package manager per archive format and the
// archives listed under packages. The returned Service owns everything it
// opened; closing it releases the archives.
func NewService(s *Settings) (*vfs.Service, error) {
	root := s.Resolve(s.Root.Path)
	opts := vfs.Options{
		RootPath:      root,
		RootPriority:  s.Root.Priority,
		UseIndexCache: s.IndexCache,
		IndexWorkers:  s.IndexWorkers,
	}
	if f := NewHiddenFilter(root, s.Hidden); f != nil {
		opts.Filter = f
	}

	svc, err := vfs.NewService(opts)
	if err != nil {
		return nil, err
	}
	if err := configure(svc, s); err != nil {
		svc.Close()
		return nil, err
	}
	return svc, nil
}

func configure(svc *vfs.Service, s *Settings) error {
	for _, r := range s.Roots {
		if err := svc.AddSecondaryAbsoluteReadOnlyRootPath(r.ID, s.Resolve(r.Path), r.Priority); err != nil {
			return fmt.Errorf("root %s: %w", r.ID, err)
		}
	}
	for _, m := range s.Mounts {
		mode, err := m.SearchMode()
		if err != nil {
			return err
		}
		path := m.Path
		if m.Absolute {
			path = s.Resolve(path)
		}
		svc.AddCustomMountDirectory(path, m.Absolute, mode)
	}

	if err := svc.RegisterPackageManager(ZipManagerName, archive.NewZipManager(svc)); err != nil {
		return err
	}
	if err := svc.RegisterPackageManager(CPIOManagerName, archive.NewCPIOManager(svc)); err != nil {
		return err
	}
	for _, name := range s.Packages {
		if err := loadPackage(svc, name); err != nil {
			return err
		}
	}
	return nil
}

// loadPackage loads an archive through the manager of its format.
func loadPackage(svc *vfs.Service, name string) error {
	format, ok := archive.DetectFormat(name)
	if !ok {
		return fmt.Errorf("package %s: unknown archive format", name)
	}
	managerName := ZipManagerName
	if format == archive.FormatCPIO {
		managerName = CPIOManagerName
	}
	pm, ok := svc.PackageManager(managerName)
	if !ok {
		return fmt.Errorf("package %s: %w", name, common.ErrNotFound)
	}
	if _, err := pm.LoadPackage(name, common.SearchLocal); err != nil {
		return err
	}
	log.Debugf("[Config] loaded package %q", name)
	return nil
}

// ParseLogLevel maps a settings log level onto a logrus level. "off" and
// the empty string disable logging (ok is false).
func ParseLogLevel(level string) (lvl log.Level, ok bool) {
	switch strings.ToLower(level) {
	case "", "off", "none":
		return log.PanicLevel, false
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return log.PanicLevel, false
	}
	return lvl, true
}
