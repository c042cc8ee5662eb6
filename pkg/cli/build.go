package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/playpack/pkg/cli/config"
	"github.com/m-mizutani/playpack/pkg/infra/archive"
	"github.com/m-mizutani/playpack/pkg/infra/git"
	"github.com/m-mizutani/playpack/pkg/usecase"
)

// buildConfig gathers everything needed to build and publish a push
type buildConfig struct {
	git       config.Git
	playbook  config.Playbook
	storage   config.Storage
	aws       config.AWS
	githubApp config.GitHubApp
	workspace config.Workspace
}

func (b *buildConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, b.git.Flags()...)
	flags = append(flags, b.githubApp.Flags()...)
	flags = append(flags, b.playbook.Flags()...)
	flags = append(flags, b.storage.Flags()...)
	flags = append(flags, b.aws.Flags()...)
	flags = append(flags, b.workspace.Flags()...)
	return flags
}

// newUseCase wires infrastructure clients into the build use case. The
// returned function releases them.
func (b *buildConfig) newUseCase(ctx context.Context) (*usecase.Build, func(), error) {
	credOpts, err := b.git.CredentialOptions(ctx, &b.aws, &b.githubApp)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure git credentials")
	}

	publisher, closePublisher, err := b.storage.NewPublisher(ctx, &b.aws)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure storage")
	}

	uc, err := usecase.NewBuild(
		usecase.BuildConfig{
			Branch:        b.git.Branch,
			Bucket:        b.storage.Bucket,
			ObjectKey:     b.storage.ObjectKey,
			PlaybookFile:  b.playbook.File,
			InventoryFile: b.playbook.Inventory,
			CloneDir:      b.workspace.CloneDir,
			BuildDir:      b.workspace.BuildDir,
			ArchivePath:   b.workspace.ArchivePath,
			BaseVars:      b.playbook.ExtraVars,
		},
		usecase.NewCredentialResolver(credOpts...),
		git.NewFetcher(),
		b.playbook.NewRunner(),
		archive.NewZip(),
		publisher,
	)
	if err != nil {
		closePublisher()
		return nil, nil, goerr.Wrap(err, "invalid build configuration")
	}

	return uc, closePublisher, nil
}
