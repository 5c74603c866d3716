// bkp-drive - command-line client for the bkp-drive object storage service.
package main

import (
	"os"

	"github.com/jneless/bkp-drive/internal/cli"
	"github.com/jneless/bkp-drive/internal/version"
)

// Version information, set by ldflags during build.
var (
	Version   = ""
	BuildTime = ""
)

func main() {
	if Version != "" {
		version.Version = Version
	}
	if BuildTime != "" {
		version.BuildTime = BuildTime
	}

	// cobra has already printed the error
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
