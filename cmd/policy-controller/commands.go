// Package main is the policy-controller CLI entry point.
package main

import (
	"os"

	"github.com/mitchellh/cli"

	cmdServer "github.com/hashicorp/inbound-policy-controller/subcommand/server"
	"github.com/hashicorp/inbound-policy-controller/version"
)

// Commands is the mapping of every available policy-controller subcommand.
var Commands map[string]cli.CommandFactory

func init() {
	ui := &cli.BasicUi{Writer: os.Stdout, ErrorWriter: os.Stderr}

	Commands = map[string]cli.CommandFactory{
		"server": func() (cli.Command, error) {
			return &cmdServer.Command{UI: ui}, nil
		},
	}
}

func main() {
	c := cli.NewCLI("policy-controller", version.GetHumanVersion())
	c.Args = os.Args[1:]
	c.Commands = Commands

	exitStatus, err := c.Run()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
	}
	os.Exit(exitStatus)
}
