package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/wisesdn-io/wisesdn/cmd/wise-orchestrator/app"
)

func main() {
	app.NewApp().Run()
}
