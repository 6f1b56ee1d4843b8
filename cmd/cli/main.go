package main

import "nuhub/cmd/cli/command"

func main() {
	command.Execute()
}
