package main

import (
	"github.com/LeJamon/simpledexd/internal/cli"
)

func main() {
	cli.Execute()
}
