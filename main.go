// The main package for the searchpulse executable.
package main

import (
	"github.com/hirepath/searchpulse/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
