package main

import (
	"github.com/marupanda/sync/cmd"
	"github.com/marupanda/sync/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
