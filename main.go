package main

import (
	"log"

	"github.com/ABTechWorks/TinyLittleHelper/config"
	"github.com/ABTechWorks/TinyLittleHelper/server"
)

func main() {
	cfg := config.MustLoad()
	app := &server.App{}
	app.Initialize(cfg)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
