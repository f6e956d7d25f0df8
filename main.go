package main

import (
	"context"
	"os"

	"github.com/remixure/remixure/cmd"
	rerrors "github.com/remixure/remixure/internal/errors"
)

func main() {
	code := 0
	defer func() { os.Exit(code) }()

	if err := cmd.Execute(context.Background(), os.Args[1:]); err != nil {
		code = rerrors.ExitCode(err)
	}
}
