package main

import "bead-road-feed/internal/cli"

func main() {
	cli.Execute()
}
