package main

import (
	"os"

	"ApexScreener/cmd/screener/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
