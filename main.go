package main

import "github.com/kasuboski/showsync/cmd"

func main() {
	cmd.Execute()
}
