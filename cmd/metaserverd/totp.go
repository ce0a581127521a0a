package main

import (
	"fmt"
	"os"

	"github.com/metaserver/metaserver/internal/auth"
	"github.com/metaserver/metaserver/internal/config"
	"github.com/spf13/cobra"
)

// newTOTPCmd groups the admin TOTP enrollment commands (SPEC_FULL.md C2
// supplement); enroll is the only
// subcommand needed to provision a new admin account's authenticator.
func newTOTPCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "totp",
		Short: "Manage TOTP enrollment for admin/web accounts",
	}
	cmd.AddCommand(newTOTPEnrollCmd(cfgPath))
	return cmd
}

func newTOTPEnrollCmd(cfgPath *string) *cobra.Command {
	var account string
	var outPNG string

	enroll := &cobra.Command{
		Use:   "enroll",
		Short: "Generate a new TOTP secret and enrollment QR code",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if account == "" {
				return fmt.Errorf("--account is required")
			}

			key, err := auth.GenerateTOTPSecret(cfg.Auth.TOTPIssuer, account)
			if err != nil {
				return fmt.Errorf("generate totp secret: %w", err)
			}

			fmt.Printf("account:       %s\n", account)
			fmt.Printf("secret:        %s\n", key.Secret())
			fmt.Printf("provisioning:  %s\n", key.String())

			art, err := auth.EnrollmentTerminalArt(key)
			if err != nil {
				return fmt.Errorf("render terminal qr: %w", err)
			}
			fmt.Println(art)

			if outPNG != "" {
				png, err := auth.EnrollmentImagePNG(key, 256)
				if err != nil {
					return fmt.Errorf("render qr png: %w", err)
				}
				if err := os.WriteFile(outPNG, png, 0o600); err != nil {
					return fmt.Errorf("write %s: %w", outPNG, err)
				}
				fmt.Printf("wrote %s\n", outPNG)
			}
			return nil
		},
	}
	enroll.Flags().StringVar(&account, "account", "", "account name to enroll (required)")
	enroll.Flags().StringVar(&outPNG, "out", "", "optional path to write the enrollment QR as a PNG")
	return enroll
}
