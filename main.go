package main

import "github.com/KaramelBytes/termchat-cli/cmd"

func main() {
	cmd.Execute()
}
