package main

import "github.com/gridfit/rspl/cmd"

func main() {
	cmd.Execute()
}
