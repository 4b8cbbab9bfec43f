// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package main

import (
	"fmt"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/mydex/mydex/internal/access"
)

func newPermissionsCmd(c *cli) *cobra.Command {
	var require string

	cmd := &cobra.Command{
		Use:   "permissions ACCOUNT_ID",
		Short: "List the permissions an account holds through its groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return oops.Code("INVALID_ACCOUNT_ID").With("input", args[0]).Wrap(err)
			}

			var required access.Permission
			if require != "" {
				if required, err = access.ParsePermission(require); err != nil {
					return err //nolint:wrapcheck // carries ACCESS_UNKNOWN_PERMISSION
				}
			}

			svc, err := c.openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			identity, err := svc.auth.RequireIdentity(cmd.Context(), id)
			if err != nil {
				return err //nolint:wrapcheck // carries ACCOUNT_NOT_FOUND or AUTH_STORE_FAILED
			}

			if require != "" {
				if err := svc.access.Require(cmd.Context(), identity, required); err != nil {
					return err //nolint:wrapcheck // carries ACCESS_UNAUTHORIZED
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s holds %s\n", identity.Name, required)
				return nil
			}

			perms, err := svc.access.PermissionsFor(cmd.Context(), identity)
			if err != nil {
				return err //nolint:wrapcheck // carries ACCESS_STORE_FAILED
			}
			if perms.Len() == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s holds no permissions\n", identity.Name)
				return nil
			}
			out := cmd.OutOrStdout()
			for _, p := range perms.Sorted() {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&require, "require", "", "fail unless the account holds this permission")
	return cmd
}
