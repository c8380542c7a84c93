package main

import (
	"context"
	"fmt"

	"github.com/bitdevs/estudos/core/user"
)

func (cli *commandLine) bootstrap() error {
	created, err := cli.usrSvc.EnsureDefaultAdmin(context.Background())
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(cli.out, "created %q (%s)\n", user.DefaultAdminUsername, user.RoleStaff)
	} else {
		fmt.Fprintf(cli.out, "%q already exists\n", user.DefaultAdminUsername)
	}
	return nil
}

// addUser registers nu; the username must be free in its role's collection.
func (cli *commandLine) addUser(nu user.NewUser) error {
	usr, err := cli.usrSvc.Register(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "registered %q (%s)\n", usr.Username, nu.Role)
	return nil
}
