package main

import "github.com/JonMunkholm/roster/internal/cli"

func main() {
	cli.Execute()
}
