package main

import "github.com/divvun/pahkat-reposrv/cmd/pahkat-reposrv/cmd"

func main() {
	cmd.Execute()
}
