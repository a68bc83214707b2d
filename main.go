package main

import "github.com/nextlevelbuilder/pushclaw/cmd"

func main() {
	cmd.Execute()
}
