package main

import "babybook/cmd"

func main() {
	cmd.Execute()
}
