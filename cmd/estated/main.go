package main

import "github.com/MrEthical07/estateAuth/cmd/estated/cmd"

func main() {
	cmd.Execute()
}
