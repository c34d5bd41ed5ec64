package main

import (
	"context"
	"fmt"
	"os"

	"github.com/caltechlibrary/commonpy/internal/commands"
	"github.com/caltechlibrary/commonpy/network"
)

var version = "dev" // Will be set during build

func main() {
	err := commands.Execute(context.Background(), version, os.Args[1:], os.Stdout, os.Stderr)
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if network.IsKind(err, network.KindInterrupted) {
		os.Exit(130) // Standard shell convention for SIGINT
	}
	os.Exit(1)
}
