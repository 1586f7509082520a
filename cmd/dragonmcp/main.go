package main

import "dragon-mcp/internal/cli"

func main() {
	cli.Execute()
}
