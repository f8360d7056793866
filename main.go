package main

import (
	"log"
	"os"

	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/boyong/cmd/runner"
	"github.com/yusufsyaifudin/boyong/cmd/server"

	// register every migration unit into the default catalog
	_ "github.com/yusufsyaifudin/boyong/migrations"
)

func main() {
	const appName, appVersion = "boyong", "1.0.0"

	statusCmd := runner.NewStatusCmd()

	c := cli.NewCLI(appName, appVersion)
	c.Args = os.Args[1:]
	c.Autocomplete = true
	c.Commands = map[string]cli.CommandFactory{
		"":         statusCmd, // default command if no subcommand defined
		"up":       runner.NewUpCmd(),
		"down":     runner.NewDownCmd(),
		"status":   statusCmd,
		"validate": runner.NewValidateCmd(),
		"new":      runner.NewCreateCmd(),
		"server":   server.NewCmd(appName, appVersion),
	}

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}

	os.Exit(exitStatus)
}
