package main

import (
	"github.com/ntewolde/local-buyer-intelligence/cmd"
)

func main() {
	cmd.Execute()
}
