package interfaces

import (
	"context"

	"github.com/m-mizutani/playpack/pkg/domain/model"
)

// Decryptor decrypts ciphertext with a key management service
type Decryptor interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// TokenSource issues short-lived access tokens for source-control hosts
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// RepositoryFetcher materializes a repository at an exact revision
type RepositoryFetcher interface {
	Fetch(ctx context.Context, req *model.FetchRequest) (*model.WorkingCopy, error)
}

// PlaybookRunner lists inventory groups and runs playbooks
type PlaybookRunner interface {
	// ListGroups returns every group declared by the inventory, including
	// implicit ones such as "all" and "ungrouped"
	ListGroups(ctx context.Context, inventory, workDir string) ([]string, error)

	// Run executes a single playbook run and returns when it finishes
	Run(ctx context.Context, run *model.PlaybookRun) error
}

// Archiver packs a directory into a single archive file
type Archiver interface {
	Archive(ctx context.Context, srcDir, dstPath string) (*model.Archive, error)
}

// Publisher uploads an archive to durable object storage
type Publisher interface {
	Publish(ctx context.Context, archivePath, bucket, key string) (*model.PublishResult, error)
}
