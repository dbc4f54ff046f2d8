package main

import "github.com/jcdickinson/doxyrst/cmd"

func main() {
	cmd.Execute()
}
