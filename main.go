package main

import (
	"github.com/anoixa/menu-storage/cmd"
)

func main() {
	cmd.Execute()
}
