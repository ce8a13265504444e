package main

import (
	"nft-sales-bot/internal/cli"
)

func main() {
	cli.Execute()
}
