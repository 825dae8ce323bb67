package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/sundayezeilo/filelinks/internal/links"
)

func newSessionCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Report terminal users connecting and leaving",
	}
	cmd.AddCommand(newSessionAttachCmd(opts), newSessionDetachCmd(opts))
	return cmd
}

func newSessionAttachCmd(opts *globalOptions) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "attach USER_ID CONN_ID",
		Short: "Mark a user as connected on one terminal connection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseIDArg("user id", args[0])
			if err != nil {
				return err
			}
			client, err := newAdminClient(opts)
			if err != nil {
				return err
			}

			path := fmt.Sprintf("/api/sessions/%d/%s", userID, url.PathEscape(args[1]))
			body := links.HTTPAttachSessionRequest{Username: username}
			if err := client.do(cmd.Context(), http.MethodPut, path, body, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "attached user %d on %s\n", userID, args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "display name of the connected user")
	return cmd
}

func newSessionDetachCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "detach USER_ID CONN_ID",
		Short: "Mark one of a user's connections as closed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseIDArg("user id", args[0])
			if err != nil {
				return err
			}
			client, err := newAdminClient(opts)
			if err != nil {
				return err
			}

			path := fmt.Sprintf("/api/sessions/%d/%s", userID, url.PathEscape(args[1]))
			if err := client.do(cmd.Context(), http.MethodDelete, path, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "detached user %d from %s\n", userID, args[1])
			return nil
		},
	}
}
