package main

import "github.com/felixgeelhaar/haven/cmd/haven/cli"

func main() {
	cli.Execute()
}
