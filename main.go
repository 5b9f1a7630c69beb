package main

import "github.com/range-protocol/vault-sidecar/cmd"

func main() {
	cmd.Execute()
}
