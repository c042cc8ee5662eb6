package git

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/domain/model"
	"github.com/m-mizutani/playpack/pkg/domain/types"
)

const remoteName = gogit.DefaultRemoteName

// Heads and tags are fetched into their usual places. Any other advertised
// ref, such as refs/pull/*, is fetched under scratchRefPrefix so its objects
// are available, and the scratch refs are removed once the revision is found.
var fetchRefSpecs = []config.RefSpec{
	"+refs/heads/*:refs/remotes/" + remoteName + "/*",
	"+refs/tags/*:refs/tags/*",
}

const scratchRefPrefix = "refs/playpack-fetch/"

// Fetcher materializes repositories with go-git
type Fetcher struct{}

// NewFetcher creates a Fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{}
}

// Fetch replaces req.Dir with a fresh repository checked out at req.Revision.
//
// The remote's advertised value for req.Branch and HEAD is overridden with
// req.Revision before refs are imported, so the checkout reflects the pushed
// revision even when the branch moved again after the push.
func (f *Fetcher) Fetch(ctx context.Context, req *model.FetchRequest) (*model.WorkingCopy, error) {
	logger := ctxlog.From(ctx)

	hash, err := parseRevision(req.Revision)
	if err != nil {
		return nil, err
	}

	if err := os.RemoveAll(req.Dir); err != nil {
		return nil, goerr.Wrap(err, "failed to remove previous working copy", goerr.V("dir", req.Dir))
	}

	repo, err := gogit.PlainInit(req.Dir, false)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to init repository", goerr.V("dir", req.Dir))
	}

	remote, err := repo.CreateRemote(&config.RemoteConfig{
		Name: remoteName,
		URLs: []string{req.URL},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create remote", goerr.V("url", req.URL))
	}

	auth := basicAuth(req.Credentials)

	advertised, err := remote.ListContext(ctx, &gogit.ListOptions{Auth: auth})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list remote refs", goerr.T(types.ErrTagTransport), goerr.V("url", req.URL))
	}

	logger.Debug("Fetching repository",
		"url", req.URL,
		"advertised_refs", len(advertised),
		"authenticated", auth != nil,
	)

	if err := remote.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   refSpecs(advertised),
		Auth:       auth,
		Tags:       gogit.NoTags,
		Force:      true,
	}); err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil, goerr.Wrap(err, "failed to fetch repository", goerr.T(types.ErrTagTransport), goerr.V("url", req.URL))
	}

	if _, err := repo.CommitObject(hash); err != nil {
		return nil, goerr.Wrap(err, "revision is not reachable from any remote ref",
			goerr.T(types.ErrTagTransport),
			goerr.V("url", req.URL),
			goerr.V("revision", req.Revision),
		)
	}

	if err := removeScratchRefs(repo); err != nil {
		return nil, err
	}

	refs := resolveRefs(advertised)
	branchRef := plumbing.NewBranchReferenceName(req.Branch)
	refs[branchRef] = hash
	refs[plumbing.HEAD] = hash

	imported, err := importRefs(repo, refs)
	if err != nil {
		return nil, err
	}

	// Local branch mirrors the overridden remote HEAD, HEAD follows it
	if err := repo.Storer.SetReference(plumbing.NewHashReference(branchRef, refs[plumbing.HEAD])); err != nil {
		return nil, goerr.Wrap(err, "failed to set local branch", goerr.V("branch", req.Branch))
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branchRef)); err != nil {
		return nil, goerr.Wrap(err, "failed to set HEAD", goerr.V("branch", req.Branch))
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open worktree", goerr.V("dir", req.Dir))
	}
	if err := wt.Reset(&gogit.ResetOptions{Commit: refs[plumbing.HEAD], Mode: gogit.HardReset}); err != nil {
		return nil, goerr.Wrap(err, "failed to check out revision", goerr.V("revision", req.Revision))
	}

	head, err := repo.Head()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read HEAD after checkout")
	}

	return &model.WorkingCopy{
		Dir:      req.Dir,
		Revision: head.Hash().String(),
		Refs:     imported,
	}, nil
}

// refSpecs covers every ref the remote advertised
func refSpecs(advertised []*plumbing.Reference) []config.RefSpec {
	specs := slices.Clone(fetchRefSpecs)
	for _, ref := range advertised {
		name := ref.Name()
		if ref.Type() != plumbing.HashReference || name == plumbing.HEAD || name.IsBranch() || name.IsTag() {
			continue
		}
		dst := scratchRefPrefix + strings.TrimPrefix(name.String(), "refs/")
		specs = append(specs, config.RefSpec("+"+name.String()+":"+dst))
	}
	return specs
}

func removeScratchRefs(repo *gogit.Repository) error {
	iter, err := repo.Storer.IterReferences()
	if err != nil {
		return goerr.Wrap(err, "failed to list local refs")
	}

	var scratch []plumbing.ReferenceName
	if err := iter.ForEach(func(ref *plumbing.Reference) error {
		if strings.HasPrefix(ref.Name().String(), scratchRefPrefix) {
			scratch = append(scratch, ref.Name())
		}
		return nil
	}); err != nil {
		return goerr.Wrap(err, "failed to list local refs")
	}

	for _, name := range scratch {
		if err := repo.Storer.RemoveReference(name); err != nil {
			return goerr.Wrap(err, "failed to remove scratch ref", goerr.V("ref", name.String()))
		}
	}
	return nil
}

func parseRevision(rev string) (plumbing.Hash, error) {
	hash := plumbing.NewHash(rev)
	if hash.IsZero() || hash.String() != strings.ToLower(rev) {
		return plumbing.ZeroHash, goerr.New("invalid revision", goerr.T(types.ErrTagInvalidEvent), goerr.V("revision", rev))
	}
	return hash, nil
}

// basicAuth returns nil (not a typed nil) for anonymous access
func basicAuth(creds *model.Credentials) transport.AuthMethod {
	if creds == nil {
		return nil
	}
	return &githttp.BasicAuth{
		Username: creds.Username,
		Password: creds.Password,
	}
}

// resolveRefs flattens advertised refs into name→hash, following symbolic
// refs such as HEAD → refs/heads/main.
func resolveRefs(advertised []*plumbing.Reference) map[plumbing.ReferenceName]plumbing.Hash {
	byName := make(map[plumbing.ReferenceName]*plumbing.Reference, len(advertised))
	for _, ref := range advertised {
		byName[ref.Name()] = ref
	}

	refs := make(map[plumbing.ReferenceName]plumbing.Hash, len(advertised))
	for name, ref := range byName {
		target := ref
		for i := 0; target != nil && target.Type() == plumbing.SymbolicReference && i < 5; i++ {
			target = byName[target.Target()]
		}
		if target == nil || target.Type() != plumbing.HashReference {
			continue
		}
		refs[name] = target.Hash()
	}
	return refs
}

// importRefs writes heads as remote-tracking refs and tags as local tags
func importRefs(repo *gogit.Repository, refs map[plumbing.ReferenceName]plumbing.Hash) (int, error) {
	var imported int
	for name, hash := range refs {
		var local plumbing.ReferenceName
		switch {
		case name.IsBranch():
			local = plumbing.NewRemoteReferenceName(remoteName, name.Short())
		case name.IsTag():
			local = name
		default:
			continue
		}

		if err := repo.Storer.SetReference(plumbing.NewHashReference(local, hash)); err != nil {
			return imported, goerr.Wrap(err, "failed to import ref", goerr.V("ref", name.String()))
		}
		imported++
	}
	return imported, nil
}
