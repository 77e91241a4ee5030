package main

import (
	"github.com/francismars/live/internal/cli"
)

func main() {
	cli.Execute()
}
