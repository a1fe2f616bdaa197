package main

import "github.com/wenzapen/bookrule/cmd"

func main() {
	cmd.Execute()
}
