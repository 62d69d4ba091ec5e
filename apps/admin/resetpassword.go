package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	acc, err := cli.accountSvc.ResetPassword(ctx, uname, pwd)
	if err != nil {
		return cli.describe(err)
	}
	fmt.Printf("password of %q updated\n", acc.Username)
	return nil
}
