package main

import "resolvemap/internal/cli"

func main() {
	cli.Execute()
}
