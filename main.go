// ./main.go
package main

import (
	"github.com/xkilldash9x/wayfinder/cmd"
)

// main is the entry point for the wayfinder CLI.
func main() {
	cmd.Execute()
}
