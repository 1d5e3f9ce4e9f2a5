package main

import "github.com/KaramelBytes/uidpulse/cmd"

func main() {
	cmd.Execute()
}
