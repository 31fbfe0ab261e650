package main

import (
	"os"

	"github.com/tphakala/vaultd/cmd"
	"github.com/tphakala/vaultd/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	rootCmd := cmd.RootCommand(buildinfo.NewContext(version, buildDate))
	// cobra prints the error itself
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
