package main

import (
	"github.com/ndlib/siptools/cmd/siptool/cmd"
)

func main() {
	cmd.Execute()
}
