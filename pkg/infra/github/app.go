package github

import (
	"context"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/domain/types"
)

// AppTokenSource issues GitHub App installation tokens. The token works as
// the password of HTTP basic auth for git over HTTPS with the username
// "x-access-token".
type AppTokenSource struct {
	transport *ghinstallation.Transport
}

// Option configures AppTokenSource
type Option func(*ghinstallation.Transport)

// WithBaseURL points the token source at a GitHub Enterprise Server API,
// e.g. https://github.example.com/api/v3
func WithBaseURL(baseURL string) Option {
	return func(tr *ghinstallation.Transport) {
		tr.BaseURL = baseURL
	}
}

// NewAppTokenSource creates a token source with GitHub App authentication
func NewAppTokenSource(appID, installationID int64, privateKey []byte, opts ...Option) (*AppTokenSource, error) {
	tr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport",
			goerr.T(types.ErrTagConfig),
			goerr.V("app_id", appID),
			goerr.V("installation_id", installationID),
		)
	}

	for _, opt := range opts {
		opt(tr)
	}

	return &AppTokenSource{transport: tr}, nil
}

// Token returns a valid installation token, refreshing it when expired
func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	token, err := s.transport.Token(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to get installation token", goerr.T(types.ErrTagCredential))
	}
	return token, nil
}
