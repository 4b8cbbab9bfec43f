// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/mydex/mydex/internal/auth"
	"github.com/mydex/mydex/pkg/errutil"
)

func newCheckLoginCmd(c *cli) *cobra.Command {
	var next string

	cmd := &cobra.Command{
		Use:   "check-login USERNAME",
		Short: "Authenticate USERNAME with a password read from stdin",
		Long: `Run a full login against the credential store: look up USERNAME,
verify the password from the first line of stdin on the verification pool, and
print the resulting identity. Unknown accounts and wrong passwords produce the
same message.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}

			svc, err := c.openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			creds := auth.Credentials{Username: args[0], Password: password, Next: next}
			identity, err := svc.auth.Authenticate(cmd.Context(), creds)
			if err != nil {
				errutil.LogError(cmd.Context(), c.logger, "login check failed", err)
				return oops.Code("LOGIN_FAILED").Errorf("%s", auth.UserMessage(err))
			}
			if identity == nil {
				return oops.Code("LOGIN_REJECTED").Errorf("%s", auth.InvalidCredentialsMessage)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Authenticated account %d (%s)\n", identity.ID, identity.Name)
			fmt.Fprintf(out, "Redirect: %s\n", creds.SafeNext())
			return nil
		},
	}

	cmd.Flags().StringVar(&next, "next", "", "post-login redirect path to sanitize")
	return cmd
}
