package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/peteski22/cryoflow/internal/cli"
)

func main() {
	if err := run(); err != nil {
		if !errors.Is(err, cli.ErrReported) {
			_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func run() error {
	return cli.Execute(os.Args[1:])
}
