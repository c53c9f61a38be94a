package main

import "github.com/rustlink/rustlink/cmd"

func main() {
	cmd.Execute()
}
