// hivectl automates incident handling against TheHive and Cortex.
package main

import (
	"os"

	"github.com/mkivela/go-thehive/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
