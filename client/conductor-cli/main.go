package main

import "Conductor/client/conductor-cli/cmd"

func main() {
	cmd.Execute()
}
