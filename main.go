package main

import (
	"os"

	"gitea.kood.tech/petrkubec/match-me/matchcore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
