package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sundayezeilo/filelinks/tokencodec"
)

func newTokenCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Encode or decode link tokens offline",
	}
	cmd.AddCommand(newTokenEncodeCmd(opts), newTokenDecodeCmd(opts))
	return cmd
}

func newTokenEncodeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "encode USER_ID FILE_ID",
		Short:   "Print the token for a user and file",
		Example: `  linkctl token encode --board "Demo BBS" 42 7`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := codecFor(opts)
			if err != nil {
				return err
			}
			userID, err := parseIDArg("user id", args[0])
			if err != nil {
				return err
			}
			fileID, err := parseIDArg("file id", args[1])
			if err != nil {
				return err
			}

			token, err := codec.Encode(userID, fileID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newTokenDecodeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "decode TOKEN",
		Short:   "Print the user and file a token refers to",
		Example: `  linkctl token decode --board "Demo BBS" Xy3kQ9`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := codecFor(opts)
			if err != nil {
				return err
			}

			userID, fileID, err := codec.Decode(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user_id=%d file_id=%d\n", userID, fileID)
			return nil
		},
	}
}

func codecFor(opts *globalOptions) (*tokencodec.Codec, error) {
	if opts.board == "" {
		return nil, errors.New("--board (or BOARD_NAME) is required")
	}
	return tokencodec.New(opts.board)
}

func parseIDArg(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", what, s)
	}
	return id, nil
}
