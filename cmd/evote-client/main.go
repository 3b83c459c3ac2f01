package main

import "github.com/information-sharing-networks/evote-gateway/internal/cli"

func main() {
	cli.Execute()
}
