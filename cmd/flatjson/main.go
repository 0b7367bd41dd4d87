package main

import (
	"github.com/ssargent/flatjson/cmd/flatjson/cmd"
	"github.com/ssargent/flatjson/pkg/di"
)

func main() {
	container := di.NewContainer()
	cmd.SetContainer(container)

	cmd.Execute()
}
