package main

import "github.com/kozaktomas/photo-timeline/cmd"

func main() {
	cmd.Execute()
}
