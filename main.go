package main

import "github.com/regiment-logi/quartermaster/cmd"

func main() {
	cmd.Execute()
}
