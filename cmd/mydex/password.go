// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/mydex/mydex/internal/auth"
)

// readPassword reads the first line of r. Passwords are never taken from
// arguments so they stay out of shell history and process listings.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newHashPasswordCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password read from stdin",
		Long: `Read a password from the first line of stdin and print its argon2id
hash in the format stored in accounts.password_hash. Cost parameters come from
the auth.argon2 configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}

			hasher, err := auth.NewArgon2idHasherWithParams(c.cfg.Argon2Params())
			if err != nil {
				return err //nolint:wrapcheck // carries AUTH_INVALID_PARAMS
			}
			encoded, err := hasher.Hash(password)
			if err != nil {
				return err //nolint:wrapcheck // carries AUTH_EMPTY_PASSWORD
			}

			fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return nil
		},
	}
}
