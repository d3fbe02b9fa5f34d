package main

import "github.com/nikhilbhutani/promptcompliance/internal/cli"

func main() {
	cli.Execute()
}
