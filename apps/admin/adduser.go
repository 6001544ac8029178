package main

import (
	"context"
	"fmt"

	"github.com/restorank/restorank/core/user"
)

// addUser creates a user or updates the email and password of an existing one.
func (cli *commandLine) addUser(uname, email, pwd string) error {
	nu := user.NewUser{Username: uname, Email: email, Password: pwd, ConfirmPassword: pwd}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}
	usr, err := cli.usrSvc.AddUser(context.Background(), nu.Username, nu.Email, nu.Password)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %q saved (id: %d)\n", usr.Username, usr.ID)
	return nil
}
