package main

import (
	"p2p-price-tracker/internal/cli"
)

func main() {
	cli.Execute()
}
