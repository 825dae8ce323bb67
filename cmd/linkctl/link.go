package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sundayezeilo/filelinks/internal/links"
)

func newLinkCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Issue, inspect and revoke download links",
	}
	cmd.AddCommand(newLinkCreateCmd(opts), newLinkShowCmd(opts), newLinkLookupCmd(opts), newLinkRemoveCmd(opts))
	return cmd
}

func newLinkCreateCmd(opts *globalOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:     "create USER_ID FILE_ID",
		Short:   "Issue or refresh the link for a user and file",
		Example: `  linkctl link create 42 7 --ttl 36h`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseIDArg("user id", args[0])
			if err != nil {
				return err
			}
			fileID, err := parseIDArg("file id", args[1])
			if err != nil {
				return err
			}
			client, err := newAdminClient(opts)
			if err != nil {
				return err
			}

			body := links.HTTPCreateLinkRequest{UserID: &userID, FileID: &fileID}
			if ttl > 0 {
				body.TTL = ttl.String()
			}

			var link links.LinkResponse
			if err := client.do(cmd.Context(), http.MethodPost, "/api/links", body, &link); err != nil {
				return err
			}
			printLink(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "link lifetime (server default when unset)")
	return cmd
}

func newLinkShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show TOKEN",
		Short: "Show a live link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient(opts)
			if err != nil {
				return err
			}

			var link links.LinkResponse
			if err := client.do(cmd.Context(), http.MethodGet, "/api/links/"+args[0], nil, &link); err != nil {
				return err
			}
			printLink(cmd.OutOrStdout(), link)
			return nil
		},
	}
}

func newLinkLookupCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup USER_ID FILE_ID",
		Short: "Find the existing link for a user and file without creating one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseIDArg("user id", args[0])
			if err != nil {
				return err
			}
			fileID, err := parseIDArg("file id", args[1])
			if err != nil {
				return err
			}
			client, err := newAdminClient(opts)
			if err != nil {
				return err
			}

			var link links.LinkResponse
			path := fmt.Sprintf("/api/users/%d/files/%d/link", userID, fileID)
			if err := client.do(cmd.Context(), http.MethodGet, path, nil, &link); err != nil {
				return err
			}
			printLink(cmd.OutOrStdout(), link)
			return nil
		},
	}
}

func newLinkRemoveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm TOKEN",
		Aliases: []string{"revoke"},
		Short:   "Revoke a link immediately",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient(opts)
			if err != nil {
				return err
			}
			if err := client.do(cmd.Context(), http.MethodDelete, "/api/links/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
			return nil
		},
	}
}

func printLink(w io.Writer, l links.LinkResponse) {
	fmt.Fprintf(w, "Token:   %s\n", l.Token)
	fmt.Fprintf(w, "User:    %d\n", l.UserID)
	fmt.Fprintf(w, "File:    %d\n", l.FileID)
	fmt.Fprintf(w, "URL:     %s\n", l.URL)

	expires := l.ExpireAt
	if t, err := time.Parse(time.RFC3339, l.ExpireAt); err == nil {
		expires = fmt.Sprintf("%s (%s)", l.ExpireAt, humanize.Time(t))
	}
	fmt.Fprintf(w, "Expires: %s\n", expires)
}
