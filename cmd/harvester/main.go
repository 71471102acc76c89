// Package main is the harvester entrypoint.
package main

import (
	"os"

	"github.com/JakeFAU/worklist-harvester/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
