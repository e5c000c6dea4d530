package main

import "github.com/aponysus/effex/cmd/effsim/cli"

func main() {
	cli.Execute()
}
