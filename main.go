// The main package for the progress-tracker executable.
package main

import (
	"github.com/JakeFAU/job-progress-tracker/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
