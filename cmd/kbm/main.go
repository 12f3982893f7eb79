package main

import "github.com/OpenTraceLab/kbmatrix/cmd/kbm/cmd"

func main() {
	cmd.Execute()
}
