package main

import "github.com/jmcleod/cloudbox/cmd/cloudbox/cmd"

func main() {
	cmd.Execute()
}
