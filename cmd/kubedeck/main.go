package main

import (
	"fmt"
	"os"

	"github.com/kubedeck/kubedeck/pkg/cmd"
)

func main() {
	root := cmd.NewRootCommand(cmd.DefaultOptions())
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
