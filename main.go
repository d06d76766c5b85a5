package main

import "github.com/vibast-solutions/ms-go-nengtul/cmd"

func main() {
	cmd.Execute()
}
