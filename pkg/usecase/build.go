package usecase

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/domain/interfaces"
	"github.com/m-mizutani/playpack/pkg/domain/model"
	"github.com/m-mizutani/playpack/pkg/domain/types"
)

const (
	// Only the artifact generation part of a playbook is run; deployment
	// tasks in the same playbook are tagged differently and skipped.
	generateTag = "generate"

	defaultBranch       = "master"
	defaultPlaybookFile = "site.yml"
	defaultInventory    = "inventory"
	archiveExt          = ".zip"
)

// Skip reasons reported for events that are not built
const (
	SkipReasonBranch  = "branch_mismatch"
	SkipReasonDeleted = "branch_deleted"
)

// BuildConfig is the build configuration, resolved once at startup
type BuildConfig struct {
	Branch        string            // Branch to build, "master" if empty
	Bucket        string            // Destination bucket, required
	ObjectKey     string            // Destination key, "<repository name>.zip" if empty
	PlaybookFile  string            // "<CloneDir>/site.yml" if empty
	InventoryFile string            // "<CloneDir>/inventory" if empty
	CloneDir      string            // Working copy path
	BuildDir      string            // Directory playbooks write artifacts to
	ArchivePath   string            // Where the zip is written before upload
	BaseVars      map[string]string // Variables under the per-group ones
}

func (c *BuildConfig) validate() error {
	if c.Bucket == "" {
		return goerr.New("destination bucket is required", goerr.T(types.ErrTagConfig))
	}

	paths := []struct {
		name string
		path string
	}{
		{"clone_dir", c.CloneDir},
		{"build_dir", c.BuildDir},
		{"archive_path", c.ArchivePath},
	}
	for _, p := range paths {
		if !filepath.IsAbs(p.path) || filepath.Clean(p.path) == "/" {
			return goerr.New("workspace path must be absolute and not the root directory",
				goerr.T(types.ErrTagConfig),
				goerr.V(p.name, p.path),
			)
		}
	}

	// Each path is removed on acquire and release, so none may contain another
	for i := range paths {
		for j := i + 1; j < len(paths); j++ {
			a, b := paths[i], paths[j]
			if overlaps(a.path, b.path) {
				return goerr.New("workspace paths must not overlap",
					goerr.T(types.ErrTagConfig),
					goerr.V(a.name, a.path),
					goerr.V(b.name, b.path),
				)
			}
		}
	}

	return nil
}

// overlaps reports whether a and b are the same path or one contains the other
func overlaps(a, b string) bool {
	return contains(a, b) || contains(b, a)
}

func contains(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Build handles push events end to end: filter, authenticate, fetch, run
// playbooks, archive, publish, clean up.
type Build struct {
	cfg         BuildConfig
	credentials interfaces.CredentialResolver
	fetcher     interfaces.RepositoryFetcher
	runner      interfaces.PlaybookRunner
	archiver    interfaces.Archiver
	publisher   interfaces.Publisher

	// Workspace paths are fixed, so builds in one process must not overlap
	mutex sync.Mutex
}

// NewBuild creates a Build use case
func NewBuild(
	cfg BuildConfig,
	credentials interfaces.CredentialResolver,
	fetcher interfaces.RepositoryFetcher,
	runner interfaces.PlaybookRunner,
	archiver interfaces.Archiver,
	publisher interfaces.Publisher,
) (*Build, error) {
	if cfg.Branch == "" {
		cfg.Branch = defaultBranch
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Build{
		cfg:         cfg,
		credentials: credentials,
		fetcher:     fetcher,
		runner:      runner,
		archiver:    archiver,
		publisher:   publisher,
	}, nil
}

// HandlePush processes one push event. Pushes to other branches and branch
// deletions return a skipped report without touching the workspace.
func (uc *Build) HandlePush(ctx context.Context, event *model.PushEvent) (*model.BuildReport, error) {
	invocationID := event.ID
	if invocationID == "" {
		invocationID = uuid.NewString()
	}
	ctx = ctxlog.With(ctx, ctxlog.From(ctx).With("invocation_id", invocationID))
	logger := ctxlog.From(ctx)

	report := &model.BuildReport{
		InvocationID: invocationID,
		Repository:   event.Repository.Name,
		Ref:          event.Ref,
		Revision:     event.After,
	}

	logger.Info("Received push event",
		"source", event.Source,
		"ref", event.Ref,
		"revision", event.After,
		"repository", event.Repository.Name,
	)

	if event.Ref == "" {
		return nil, goerr.New("push event has no ref", goerr.T(types.ErrTagInvalidEvent), goerr.V("event_id", event.ID))
	}

	if !event.IsBranch(uc.cfg.Branch) {
		logger.Info("Event does not relate to configured branch, skipping",
			"branch", uc.cfg.Branch,
			"ref", event.Ref,
		)
		report.Skipped = true
		report.SkipReason = SkipReasonBranch
		return report, nil
	}

	if event.IsDeletion() {
		logger.Info("Branch was deleted, nothing to build", "ref", event.Ref)
		report.Skipped = true
		report.SkipReason = SkipReasonDeleted
		return report, nil
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}

	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	creds, err := uc.credentials.Resolve(ctx, event.Repository.CloneURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve git credentials", goerr.V("repository", event.Repository.Name))
	}

	ws, err := acquireWorkspace(ctx, uc.cfg)
	if err != nil {
		return nil, err
	}
	defer ws.release(ctx)

	wc, err := uc.fetcher.Fetch(ctx, &model.FetchRequest{
		URL:         event.Repository.CloneURL,
		Revision:    event.After,
		Branch:      uc.cfg.Branch,
		Dir:         ws.cloneDir,
		Credentials: creds,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch repository",
			goerr.V("repository", event.Repository.Name),
			goerr.V("revision", event.After),
		)
	}
	logger.Info("Fetched repository", "dir", wc.Dir, "revision", wc.Revision, "refs", wc.Refs)

	groups, err := uc.runPlaybooks(ctx, ws)
	if err != nil {
		return nil, err
	}
	report.Groups = groups

	archive, err := uc.archiver.Archive(ctx, ws.buildDir, ws.archivePath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to archive build output", goerr.V("build_dir", ws.buildDir))
	}
	report.ArchiveFiles = archive.Files
	report.ArchiveSize = archive.Size

	key := uc.objectKey(event)
	result, err := uc.publisher.Publish(ctx, archive.Path, uc.cfg.Bucket, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to publish archive",
			goerr.V("bucket", uc.cfg.Bucket),
			goerr.V("key", key),
		)
	}
	report.Published = result

	logger.Info("Published archive",
		"location", result.Location,
		"etag", result.ETag,
		"version_id", result.VersionID,
		"groups", groups,
		"files", archive.Files,
		"size", archive.Size,
	)

	return report, nil
}

// runPlaybooks runs the playbook once per environment group, in order, and
// stops at the first failure
func (uc *Build) runPlaybooks(ctx context.Context, ws *workspace) ([]string, error) {
	playbook := uc.cfg.PlaybookFile
	if playbook == "" {
		playbook = filepath.Join(ws.cloneDir, defaultPlaybookFile)
	}
	inventory := uc.cfg.InventoryFile
	if inventory == "" {
		inventory = filepath.Join(ws.cloneDir, defaultInventory)
	}

	declared, err := uc.runner.ListGroups(ctx, inventory, ws.cloneDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list inventory groups", goerr.V("inventory", inventory))
	}

	groups := environmentGroups(declared)
	if len(groups) == 0 {
		return nil, goerr.New("inventory declares no environment group",
			goerr.T(types.ErrTagPlaybook),
			goerr.V("inventory", inventory),
			goerr.V("declared", declared),
		)
	}

	for _, group := range groups {
		run := &model.PlaybookRun{
			Playbook:   playbook,
			Inventory:  inventory,
			Group:      group,
			WorkDir:    ws.cloneDir,
			Vars:       groupVars(uc.cfg.BaseVars, group, ws.buildDir),
			Tags:       []string{generateTag},
			Connection: "local",
			Forks:      1,
			Check:      false,
		}
		if err := uc.runner.Run(ctx, run); err != nil {
			return nil, goerr.Wrap(err, "playbook failed for environment group", goerr.V("group", group))
		}
	}

	return groups, nil
}

func (uc *Build) objectKey(event *model.PushEvent) string {
	if uc.cfg.ObjectKey != "" {
		return uc.cfg.ObjectKey
	}
	return event.Repository.Name + archiveExt
}

// environmentGroups drops the implicit groups and sorts the rest
func environmentGroups(declared []string) []string {
	groups := make([]string, 0, len(declared))
	for _, g := range declared {
		if g == "" || slices.Contains(types.ReservedGroups, g) || slices.Contains(groups, g) {
			continue
		}
		groups = append(groups, g)
	}
	slices.Sort(groups)
	return groups
}

// groupVars overlays the per-group variables on the base variables
func groupVars(base map[string]string, group, buildDir string) map[string]any {
	vars := make(map[string]any, len(base)+3)
	for k, v := range base {
		vars[k] = v
	}
	vars["env"] = group
	vars["sts_disable"] = "true"
	vars["cf_build_folder"] = buildDir
	return vars
}
