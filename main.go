package main

import "github.com/Zerofisher/icmpwatch/cmd"

func main() {
	cmd.Execute()
}
