package interfaces

//go:generate moq -out mocks/usecase_mock.go -pkg mocks . BuildUseCase

import (
	"context"

	"github.com/m-mizutani/playpack/pkg/domain/model"
)

// BuildUseCase turns a push event into a published artifact archive
type BuildUseCase interface {
	// HandlePush filters, builds and publishes. A push to another branch
	// returns a skipped report and no error.
	HandlePush(ctx context.Context, event *model.PushEvent) (*model.BuildReport, error)
}

// CredentialResolver produces source-control credentials for a repository
type CredentialResolver interface {
	// Resolve returns nil credentials for anonymous access
	Resolve(ctx context.Context, cloneURL string) (*model.Credentials, error)
}
