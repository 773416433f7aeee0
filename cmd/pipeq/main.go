package main

import (
	"os"

	"github.com/nonibytes/pipeq/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
