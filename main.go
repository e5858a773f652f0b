package main

import "github.com/amirkhaki/uthreads/cmd/uthreads/cmd"

func main() {
	cmd.Execute()
}
