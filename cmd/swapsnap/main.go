package main

import "github.com/MilekOfficial/SwapSnap/cmd/swapsnap/cmd"

func main() {
	cmd.Execute()
}
