package main

import "github.com/AaronLay10/SentientJobs/internal/cli"

func main() {
	cli.Execute()
}
