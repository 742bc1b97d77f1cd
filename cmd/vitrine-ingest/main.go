package main

import "github.com/vitrine-search/vitrine/internal/cli"

func main() {
	cli.Execute()
}
