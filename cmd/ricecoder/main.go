package main

import (
	"os"

	"github.com/moabualruz/ricecoder-sub010/internal/cmd"
)

func main() {
	os.Exit(cmd.ExitCode(cmd.Execute()))
}
