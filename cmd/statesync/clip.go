package main

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/statesync/pkg/clipboard"
)

func clipCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clip",
		Short: "Clipboard helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "copy [TEXT]",
		Short: "Copy TEXT (or standard input) to the system clipboard",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				text = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = strings.TrimSuffix(string(data), "\n")
			}

			ok := clipboard.Copy(cmd.Context(), a.clipboard, text, clipboard.Options{
				Logger:  a.logger,
				Metrics: a.metrics,
			})
			if !ok {
				return errors.New("clipboard write failed")
			}
			success(cmd.OutOrStdout(), "Copied %d bytes", len(text))
			return nil
		},
	})
	return cmd
}
