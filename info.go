package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/umalmyha/customers-api/internal/migration"
)

func printInfo(out io.Writer, infos []migration.Info) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tDESCRIPTION\tSCRIPT\tSTATE\tINSTALLED ON\tEXECUTION TIME")

	for _, i := range infos {
		installedOn := ""
		if i.InstalledOn != nil {
			installedOn = i.InstalledOn.Format(time.RFC3339)
		}

		executionTime := ""
		if i.State != migration.StatePending && i.State != migration.StateIgnored {
			executionTime = i.ExecutionTime.String()
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i.Version, i.Description, i.Script, i.State, installedOn, executionTime)
	}
	return w.Flush()
}
