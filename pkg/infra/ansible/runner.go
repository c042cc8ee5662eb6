package ansible

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/domain/model"
	"github.com/m-mizutani/playpack/pkg/domain/types"
)

// metaKey holds hostvars in `ansible-inventory --list` output, it is not a group
const metaKey = "_meta"

// Runner drives the ansible-playbook and ansible-inventory binaries
type Runner struct {
	playbookBin  string
	inventoryBin string
	env          []string
	command      commandFunc
}

// Option configures Runner
type Option func(*Runner)

// WithPlaybookBin overrides the ansible-playbook executable
func WithPlaybookBin(bin string) Option {
	return func(r *Runner) {
		r.playbookBin = bin
	}
}

// WithInventoryBin overrides the ansible-inventory executable
func WithInventoryBin(bin string) Option {
	return func(r *Runner) {
		r.inventoryBin = bin
	}
}

// WithEnv adds KEY=VALUE pairs to the environment of every command
func WithEnv(env ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

func withCommand(fn commandFunc) Option {
	return func(r *Runner) {
		r.command = fn
	}
}

// New creates a Runner
func New(opts ...Option) *Runner {
	r := &Runner{
		playbookBin:  "ansible-playbook",
		inventoryBin: "ansible-inventory",
		env: []string{
			"ANSIBLE_NOCOLOR=1",
			"ANSIBLE_FORCE_COLOR=0",
			"ANSIBLE_RETRY_FILES_ENABLED=0",
			"PYTHONUNBUFFERED=1",
		},
		command: execCommand,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListGroups parses the inventory with ansible-inventory and returns every
// declared group name in lexical order
func (r *Runner) ListGroups(ctx context.Context, inventory, workDir string) ([]string, error) {
	out, err := r.command(ctx, workDir, r.env, r.inventoryBin, "--inventory", inventory, "--list")
	if err != nil {
		return nil, commandError(err, "failed to load inventory", goerr.V("inventory", inventory))
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse inventory listing",
			goerr.T(types.ErrTagPlaybook),
			goerr.V("inventory", inventory),
		)
	}

	groups := make([]string, 0, len(parsed))
	for name := range parsed {
		if name == metaKey {
			continue
		}
		groups = append(groups, name)
	}
	slices.Sort(groups)

	return groups, nil
}

// Run executes ansible-playbook once and blocks until it exits
func (r *Runner) Run(ctx context.Context, run *model.PlaybookRun) error {
	logger := ctxlog.From(ctx)

	args, err := playbookArgs(run)
	if err != nil {
		return err
	}

	logger.Info("Running playbook",
		"playbook", run.Playbook,
		"inventory", run.Inventory,
		"group", run.Group,
		"tags", run.Tags,
	)

	out, err := r.command(ctx, run.WorkDir, r.env, r.playbookBin, args...)
	if err != nil {
		return commandError(err, "playbook run failed",
			goerr.V("playbook", run.Playbook),
			goerr.V("group", run.Group),
		)
	}

	if recap := playRecap(out); recap != "" {
		logger.Info("Playbook finished", "group", run.Group, "recap", recap)
	}
	logger.Debug("Playbook output", "group", run.Group, "output", string(out))

	return nil
}

func playbookArgs(run *model.PlaybookRun) ([]string, error) {
	extraVars, err := json.Marshal(run.Vars)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode extra vars",
			goerr.T(types.ErrTagPlaybook),
			goerr.V("group", run.Group),
		)
	}

	args := []string{"--inventory", run.Inventory}
	if run.Connection != "" {
		args = append(args, "--connection", run.Connection)
	}
	if run.Forks > 0 {
		args = append(args, "--forks", strconv.Itoa(run.Forks))
	}
	if len(run.Tags) > 0 {
		args = append(args, "--tags", strings.Join(run.Tags, ","))
	}
	if run.Check {
		args = append(args, "--check")
	}
	args = append(args, "--extra-vars", string(extraVars), run.Playbook)

	return args, nil
}

// playRecap returns the host lines following "PLAY RECAP"
func playRecap(out []byte) string {
	var lines []string
	inRecap := false

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "PLAY RECAP") {
			inRecap = true
			continue
		}
		if inRecap && line != "" {
			lines = append(lines, strings.Join(strings.Fields(line), " "))
		}
	}

	return strings.Join(lines, "; ")
}

func commandError(err error, msg string, opts ...goerr.Option) error {
	opts = append(opts, goerr.T(types.ErrTagPlaybook))

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		opts = append(opts,
			goerr.V("command", exitErr.Command),
			goerr.V("exit_code", exitErr.ExitCode),
			goerr.V("output", string(exitErr.Output)),
		)
	}

	return goerr.Wrap(err, msg, opts...)
}
