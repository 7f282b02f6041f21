package main

import "github.com/ludoduel/ludo-server/internal/cli"

func main() {
	cli.Execute()
}
