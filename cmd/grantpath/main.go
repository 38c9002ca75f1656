package main

import "github.com/grantpath/grantpath/internal/cli"

func main() {
	cli.Execute()
}
