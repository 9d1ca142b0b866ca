package main

import "github.com/openblcmm/blcmm/cmd"

func main() {
	cmd.Execute()
}
