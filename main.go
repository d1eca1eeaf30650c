package main

import "attic/cmd"

func main() {
	cmd.Execute()
}
