// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/symvault/cmd/symvault/cli"
)

func fetchCommand() *cli.Command {
	var (
		service serviceFlags
		output  string
	)
	return &cli.Command{
		Name:    "fetch",
		Summary: "download one bundle blob to a file",
		Usage:   "symvault fetch <blob-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "fetch a blob into the working directory",
				Command:     "symvault fetch 4f7a... --output app-debug.zip",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
			service.register(flags)
			flags.StringVarP(&output, "output", "o", "", "output file (default: the blob id)")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one blob id, got %d arguments", len(args))
			}
			c, err := service.client()
			if err != nil {
				return err
			}
			blobID := args[0]
			if output == "" {
				output = blobID
			}

			body, size, err := c.download(context.Background(), blobID)
			if err != nil {
				return err
			}
			defer body.Close()

			file, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
			if err != nil {
				return err
			}
			written, err := io.Copy(file, body)
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				os.Remove(output)
				return fmt.Errorf("writing %s: %w", output, err)
			}
			if size >= 0 && written != size {
				os.Remove(output)
				return fmt.Errorf("short download: got %d of %d bytes", written, size)
			}

			fmt.Printf("%s: %d bytes\n", output, written)
			return nil
		},
	}
}
