package main

import (
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	app := newApp(os.Stdout, os.Stderr)
	return app.execute(args)
}
