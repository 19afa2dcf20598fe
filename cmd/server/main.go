package main

import (
	"context"
	"fmt"
	"os"
)

// overridden during build with ldflags
var version = "dev"

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
