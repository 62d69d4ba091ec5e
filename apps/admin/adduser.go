package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
)

// addUser signs up a new account with the given role, after the same checks as the signup form.
func (cli *commandLine) addUser(ctx context.Context, na account.NewAccount) error {
	if err := na.Validate(ctx, cli.validate, cli.accountSvc); err != nil {
		return cli.describe(err)
	}
	acc, err := cli.accountSvc.Signup(ctx, na)
	if err != nil {
		return cli.describe(err)
	}
	fmt.Printf("%s account %q created\n", acc.Kind, acc.Username)
	return nil
}

// describe flattens validation errors into a single line.
func (cli *commandLine) describe(err error) error {
	fields := core.FieldErrors(err, cli.translator)
	if len(fields) == 0 {
		return err
	}
	msgs := make([]string, 0, len(fields))
	for fld, msg := range fields {
		msgs = append(msgs, fld+": "+msg)
	}
	sort.Strings(msgs)
	return fmt.Errorf("invalid account: %s", strings.Join(msgs, "; "))
}
