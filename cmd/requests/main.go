package main

import (
	"os"

	"github.com/hashicorp-forge/requests/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
