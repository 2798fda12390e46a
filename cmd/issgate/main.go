package main

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/3leaps/issgate/internal/cmd"
)

// Injected at link time via -ldflags.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

var exitCodePattern = regexp.MustCompile(`\(exit code (\d+)\)$`)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		code := 1
		if m := exitCodePattern.FindStringSubmatch(err.Error()); m != nil {
			if parsed, perr := strconv.Atoi(m[1]); perr == nil {
				code = parsed
			}
		}
		os.Exit(code)
	}
}
