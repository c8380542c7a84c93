package main

import (
	"context"
	"fmt"

	"github.com/bitdevs/estudos/core"
	"github.com/bitdevs/estudos/core/activity"
)

func (cli *commandLine) createActivity(na activity.NewActivity) error {
	act, err := cli.actSvc.Create(context.Background(), na)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created activity %d: %s\n", act.ID, act.Title)
	return nil
}

func (cli *commandLine) semester(date string) error {
	date = core.CleanString(date)
	if _, ok := core.ParseDate(date); !ok {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	fmt.Fprintln(cli.out, activity.SemesterOf(cli.classifier, date))
	return nil
}
