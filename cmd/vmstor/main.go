package main

import (
	"os"

	"vmstor/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
