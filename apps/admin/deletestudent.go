package main

import (
	"context"
	"fmt"
)

// deleteStudent removes the student profile of uname along with its progress entries.
func (cli *commandLine) deleteStudent(ctx context.Context, uname string) error {
	n, err := cli.accountSvc.DeleteStudentProfileByUsername(ctx, uname)
	if err != nil {
		return err
	}
	fmt.Printf("student profile of %q deleted with %d progress entries\n", uname, n)
	return nil
}
