package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("activitylog failed")
	}
}
