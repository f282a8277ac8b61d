package main

import (
	"errors"
	"fmt"
	"os"

	"mountfs/internal/cli/commands"
	"mountfs/internal/common"
)

// Set by goreleaser ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)
	err := commands.Execute()
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	// exit status 2: the path did not resolve
	if errors.Is(err, common.ErrNotFound) {
		os.Exit(2)
	}
	os.Exit(1)
}
