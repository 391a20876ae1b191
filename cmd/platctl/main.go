package main

import (
	"os"

	"github.com/core-tools/hsu-platform/pkg/cli"
)

func main() {
	app := cli.New(cli.Options{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	os.Exit(app.Run(os.Args[1:]))
}
