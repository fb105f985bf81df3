package main

import "anonwall/cmd"

func main() {
	cmd.Execute()
}
