package main

import (
	"context"
	"os"

	"github.com/jlrickert/letterpress/pkg/cli"
)

func main() {
	ctx := context.Background()

	code, _ := cli.Run(ctx, nil, os.Args[1:])
	os.Exit(code)
}
