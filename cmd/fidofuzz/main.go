package main

import (
	"github.com/splitsecure/go-fido-fuzz/cmd/fidofuzz/cmd"
)

func main() {
	cmd.Execute()
}
