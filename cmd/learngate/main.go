package main

import "github.com/jmcleod/learngate/cmd/learngate/cmd"

func main() {
	cmd.Execute()
}
