package usecase

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/domain/interfaces"
	"github.com/m-mizutani/playpack/pkg/domain/model"
	"github.com/m-mizutani/playpack/pkg/domain/types"
)

// GitHub accepts installation tokens as the password of this user
const installationTokenUser = "x-access-token"

type credentialResolver struct {
	username          string
	encryptedPassword string
	decryptor         interfaces.Decryptor
	tokenSource       interfaces.TokenSource
}

// CredentialOption configures the credential resolver
type CredentialOption func(*credentialResolver)

// WithEncryptedPassword enables basic auth with a password that is stored as
// base64 encoded KMS ciphertext
func WithEncryptedPassword(username, encryptedPassword string, decryptor interfaces.Decryptor) CredentialOption {
	return func(r *credentialResolver) {
		r.username = username
		r.encryptedPassword = encryptedPassword
		r.decryptor = decryptor
	}
}

// WithTokenSource enables GitHub App installation token auth. It is used only
// when no username/password pair is configured.
func WithTokenSource(src interfaces.TokenSource) CredentialOption {
	return func(r *credentialResolver) {
		r.tokenSource = src
	}
}

// NewCredentialResolver creates a resolver. Without options every repository
// is accessed anonymously.
func NewCredentialResolver(opts ...CredentialOption) interfaces.CredentialResolver {
	r := &credentialResolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns credentials for cloneURL, or nil for anonymous access
func (r *credentialResolver) Resolve(ctx context.Context, cloneURL string) (*model.Credentials, error) {
	logger := ctxlog.From(ctx)

	if r.username != "" && r.encryptedPassword != "" {
		if r.decryptor == nil {
			return nil, goerr.New("password is configured without a decryptor", goerr.T(types.ErrTagConfig))
		}

		blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(r.encryptedPassword))
		if err != nil {
			return nil, goerr.Wrap(err, "encrypted password is not valid base64", goerr.T(types.ErrTagCredential))
		}

		plain, err := r.decryptor.Decrypt(ctx, blob)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decrypt git password", goerr.T(types.ErrTagCredential))
		}

		logger.Debug("Using basic auth", "host", hostOf(cloneURL), "username", r.username)
		return &model.Credentials{
			Username: r.username,
			Password: string(plain),
		}, nil
	}

	if r.tokenSource != nil {
		token, err := r.tokenSource.Token(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get installation token", goerr.T(types.ErrTagCredential))
		}

		logger.Debug("Using GitHub App installation token", "host", hostOf(cloneURL))
		return &model.Credentials{
			Username: installationTokenUser,
			Password: token,
		}, nil
	}

	logger.Debug("Using anonymous access", "host", hostOf(cloneURL))
	return nil, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
