package main

import "threadmirror/cmd"

func main() {
	cmd.Execute()
}
