// Package main is the entry point for the reqstate CLI.
package main

import "github.com/frontend-bootcamp/reqstate/internal/cli"

func main() {
	cli.Execute()
}
