package main

import (
	"os"

	"gridlake/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
