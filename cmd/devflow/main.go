// Command devflow creates and runs design-to-deployment workflows.
package main

import (
	"fmt"
	"os"

	"github.com/dshills/devflow/cmd/devflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
