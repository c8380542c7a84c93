package main

import (
	"context"
	"fmt"

	"github.com/bitdevs/estudos/core/user"
)

func (cli *commandLine) resetPassword(role user.Role, uname, pwd string) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	return cli.usrSvc.ResetPassword(context.Background(), role, uname, pwd)
}

// migrateFields rewraps the personal fields of role, or of every role when role is empty.
func (cli *commandLine) migrateFields(role user.Role) error {
	roles := user.AllRoles
	if role != "" {
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", role)
		}
		roles = []user.Role{role}
	}

	ctx := context.Background()
	for _, r := range roles {
		n, err := cli.usrSvc.MigrateFields(ctx, r)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%s: %d record(s) migrated\n", r, n)
	}
	return nil
}
