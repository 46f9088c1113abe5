// The main package for the prof-insights executable.
package main

import (
	"github.com/JakeFAU/prof-insights/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
