package main

import "travelpilot/internal/cli"

func main() {
	cli.Main()
}
