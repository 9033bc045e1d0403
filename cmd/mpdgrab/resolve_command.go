package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mpdgrab/internal/keys"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var shape string

	cmd := &cobra.Command{
		Use:   "resolve [endpoint]",
		Short: "Query the key API and print the manifest and key material",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			endpoint := cfg.Keys.APIURL
			if len(args) == 1 {
				endpoint = args[0]
			}
			if endpoint == "" {
				return fmt.Errorf("an endpoint argument or keys.api_url is required")
			}
			parsed, err := keys.ParseShape(shape)
			if err != nil {
				return err
			}

			resolver := keys.New(logger, keys.WithTimeout(cfg.KeysTimeout()))
			res, err := resolver.Resolve(cmd.Context(), parsed, endpoint)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Manifest: %s\n", res.Manifest)
			if len(res.Keys) > 0 {
				fmt.Fprintf(out, "Keys:     %s\n", res.Keys.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&shape, "shape", string(keys.ShapeMPDKeys), "Key API answer shape (mpd_keys, manifest_keys, url)")
	return cmd
}
