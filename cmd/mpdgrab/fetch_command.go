package main

import (
	"errors"

	"github.com/spf13/cobra"

	"mpdgrab/internal/keys"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	var keyValues []string
	var keyAPI string
	var shape string

	cmd := &cobra.Command{
		Use:   "fetch [manifest-url]",
		Short: "Download, decrypt, merge, and deliver a DRM-protected manifest",
		Long: `Download the best video stream at or below the quality ceiling plus the best
audio stream, decrypt both with the supplied key material, remux them into one
container, and deliver the result when Telegram is configured.

Key material comes from --key (repeatable, "kid:key") or from a key API
(--key-api) whose JSON answer may also supply the manifest URL.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source string
			if len(args) == 1 {
				source = args[0]
			}
			material, err := parseKeyFlags(keyValues)
			if err != nil {
				return err
			}
			parsedShape, err := keys.ParseShape(shape)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if keyAPI == "" && source == "" {
				keyAPI = cfg.Keys.APIURL
			}
			if source == "" && keyAPI == "" {
				return errors.New("a manifest URL or --key-api is required")
			}

			p, _, err := ctx.pipeline()
			if err != nil {
				return err
			}
			job := flags.job(source)
			job.Keys = material
			job.KeyAPI = keyAPI
			job.KeyShape = parsedShape

			outcome, err := p.Run(cmd.Context(), job)
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), outcome)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringArrayVarP(&keyValues, "key", "k", nil, `Decryption key as "kid:key" (repeatable)`)
	cmd.Flags().StringVar(&keyAPI, "key-api", "", "Key API endpoint returning manifest and keys")
	cmd.Flags().StringVar(&shape, "shape", string(keys.ShapeMPDKeys), "Key API answer shape (mpd_keys, manifest_keys, url)")
	return cmd
}
