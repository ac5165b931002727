package main

import "pitchlog/cmd"

func main() {
	cmd.Execute()
}
