// Package artifacts holds files embedded into the mountfs binary.
package artifacts

import _ "embed"

// Global artifacts

// GlobalSettings is the default settings.yaml written on first use.
//
//go:embed global/settings.yaml
var GlobalSettings []byte
