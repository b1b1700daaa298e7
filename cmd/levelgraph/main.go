package main

import "github.com/DrSkyle/levelgraph/cmd/levelgraph/commands"

func main() {
	commands.Execute()
}
