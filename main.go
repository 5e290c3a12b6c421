package main

import "github.com/dkadlec/presence/cmd"

func main() {
	cmd.Execute()
}
