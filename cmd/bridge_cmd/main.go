package main

import (
	"context"
	"fmt"
	"os"

	"github.com/TEENet-io/bridge-client-aptos/cmd"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
