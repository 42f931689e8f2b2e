// Command mealkiosk runs the canteen meal attendance kiosk.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/mealkiosk/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
