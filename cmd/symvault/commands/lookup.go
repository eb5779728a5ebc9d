// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/symvault/cmd/symvault/cli"
)

func lookupCommand() *cli.Command {
	var (
		service serviceFlags
		jsonOut bool
	)
	return &cli.Command{
		Name:    "lookup",
		Summary: "resolve debug ids to bundle download links",
		Usage:   "symvault lookup <debug-id> [<debug-id>...] [flags]",
		Examples: []cli.Example{
			{
				Description: "resolve one identifier",
				Command:     "symvault lookup dfb8e43a-f242-3d73-a453-aeb6a777ef75",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("lookup", pflag.ContinueOnError)
			service.register(flags)
			flags.BoolVar(&jsonOut, "json", false, "output as JSON")
			return flags
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one debug id is required")
			}
			c, err := service.client()
			if err != nil {
				return err
			}

			descriptors, err := c.lookup(context.Background(), args)
			if err != nil {
				return err
			}

			if jsonOut {
				return cli.WriteJSON(descriptors)
			}
			if len(descriptors) == 0 {
				fmt.Println("no matching bundles")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tURL")
			for _, descriptor := range descriptors {
				fmt.Fprintf(tw, "%s\t%s\n", descriptor.Type, descriptor.URL)
			}
			return tw.Flush()
		},
	}
}
