package main

import (
	"github.com/klhsieh/punchd/internal/cli"
)

func main() {
	cli.Execute()
}
