package config

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/playpack/pkg/infra/kms"
	"github.com/m-mizutani/playpack/pkg/usecase"
)

// Git holds source-control configuration
type Git struct {
	Branch            string
	User              string
	Password          string
	EncryptionContext map[string]string
}

// Flags returns CLI flags for Git configuration
func (c *Git) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "git-branch",
			Usage:       "Branch whose pushes are built",
			Value:       "master",
			Destination: &c.Branch,
			Sources:     cli.EnvVars("GIT_BRANCH"),
		},
		&cli.StringFlag{
			Name:        "git-user",
			Usage:       "User name for HTTP basic auth",
			Destination: &c.User,
			Sources:     cli.EnvVars("GIT_USER"),
		},
		&cli.StringFlag{
			Name:        "git-password",
			Usage:       "Base64 encoded KMS ciphertext of the password for HTTP basic auth",
			Destination: &c.Password,
			Sources:     cli.EnvVars("GIT_PASSWORD"),
		},
		&cli.StringMapFlag{
			Name:        "git-password-encryption-context",
			Usage:       "KMS encryption context of the password (key=value)",
			Destination: &c.EncryptionContext,
			Sources:     cli.EnvVars("GIT_PASSWORD_ENCRYPTION_CONTEXT"),
		},
	}
}

// HasBasicAuth reports whether a username and password pair is configured
func (c *Git) HasBasicAuth() bool {
	return c.User != "" && c.Password != ""
}

// CredentialOptions returns resolver options for the configured credentials.
// The AWS configuration is loaded only when a password must be decrypted.
func (c *Git) CredentialOptions(ctx context.Context, awsCfg *AWS, app *GitHubApp) ([]usecase.CredentialOption, error) {
	var opts []usecase.CredentialOption

	if c.HasBasicAuth() {
		cfg, err := awsCfg.Load(ctx)
		if err != nil {
			return nil, err
		}

		decryptor := kms.New(cfg, kms.WithEncryptionContext(c.EncryptionContext))
		opts = append(opts, usecase.WithEncryptedPassword(c.User, c.Password, decryptor))
	}

	if app.Enabled() {
		src, err := app.NewTokenSource()
		if err != nil {
			return nil, err
		}
		opts = append(opts, usecase.WithTokenSource(src))
	}

	return opts, nil
}
