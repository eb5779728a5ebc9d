// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/bureau-foundation/symvault/cmd/symvault/cli"
	"github.com/bureau-foundation/symvault/lib/blobstore"
)

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:    "keygen",
		Summary: "generate a store encryption key file",
		Usage:   "symvault keygen <path>",
		Description: `Generate a store encryption key file.

Writes a fresh random 32-byte key, hex-encoded, readable only by the
owner. Point store.encryption_key_file at it to enable at-rest
encryption. Refuses to overwrite an existing file: replacing the key
would make every already-sealed blob unreadable.`,
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one output path, got %d arguments", len(args))
			}
			path := args[0]

			key := make([]byte, blobstore.KeySize)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("generating key: %w", err)
			}
			encoded := make([]byte, hex.EncodedLen(len(key)))
			hex.Encode(encoded, key)

			file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
			if err != nil {
				return err
			}
			_, writeErr := file.Write(append(encoded, '\n'))
			if closeErr := file.Close(); writeErr == nil {
				writeErr = closeErr
			}
			if writeErr != nil {
				os.Remove(path)
				return fmt.Errorf("writing %s: %w", path, writeErr)
			}

			fmt.Printf("wrote %d-byte key to %s\n", blobstore.KeySize, path)
			return nil
		},
	}
}
