package main

import (
	"github.com/skedutech/portal/storage/database"
)

var gooseRunFunc = database.RunGoose // mockable

func (cli *commandLine) migrate(args []string) error {
	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}
	return gooseRunFunc(args[0], cli.db, rest...)
}
