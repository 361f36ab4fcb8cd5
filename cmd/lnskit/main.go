package main

import (
	"fmt"
	"os"

	"lnskit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lnskit:", err)
		os.Exit(1)
	}
}
