package cmd

import (
	"fmt"
	"io"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

const banner = `
  _                                      _
 | | ___  __ _ _ __ _ __   __ _  __ _| |_ ___
 | |/ _ \/ _` + "`" + ` | '__| '_ \ / _` + "`" + ` |/ _` + "`" + ` | __/ _ \
 | |  __/ (_| | |  | | | | (_| | (_| | ||  __/
 |_|\___|\__,_|_|  |_| |_|\__, |\__,_|\__\___|
                          |___/
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Learning platform BFF - Version %s\x1b[0m\n\n", Version)
}
