package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/playpack/pkg/domain/types"
	"github.com/m-mizutani/playpack/pkg/infra/github"
)

// GitHubApp holds GitHub App configuration used to clone private
// repositories with installation tokens
type GitHubApp struct {
	AppID          int64
	InstallationID int64
	PrivateKey     string
	BaseURL        string
}

// Flags returns CLI flags for GitHub App configuration
func (c *GitHubApp) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-app-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("GITHUB_APP_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-app-private-key",
			Usage:       "GitHub App private key (PEM)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("GITHUB_APP_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-api-url",
			Usage:       "GitHub API base URL for GitHub Enterprise Server",
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("GITHUB_API_URL"),
		},
	}
}

// Enabled reports whether any GitHub App setting is given
func (c *GitHubApp) Enabled() bool {
	return c.AppID != 0 || c.InstallationID != 0 || c.PrivateKey != ""
}

// NewTokenSource creates an installation token source
func (c *GitHubApp) NewTokenSource() (*github.AppTokenSource, error) {
	if c.AppID == 0 || c.InstallationID == 0 || c.PrivateKey == "" {
		return nil, goerr.New("GitHub App requires app ID, installation ID and private key",
			goerr.T(types.ErrTagConfig),
			goerr.V("app_id", c.AppID),
			goerr.V("installation_id", c.InstallationID),
		)
	}

	var opts []github.Option
	if c.BaseURL != "" {
		opts = append(opts, github.WithBaseURL(c.BaseURL))
	}

	return github.NewAppTokenSource(c.AppID, c.InstallationID, []byte(c.PrivateKey), opts...)
}
