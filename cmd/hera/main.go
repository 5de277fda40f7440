// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/heraclitus/cmd/hera/cmd"
)

func main() {
	cmd.Execute()
}
