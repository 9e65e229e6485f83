package main

import "github.com/TBMCG/RSS-feed/cmd/newsdash/cmd"

func main() {
	cmd.Execute()
}
