package ansible

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/playpack/pkg/domain/model"
	"github.com/m-mizutani/playpack/pkg/domain/types"
)

type mockCall struct {
	Dir  string
	Env  []string
	Name string
	Args []string
}

type mockCommand struct {
	outputFunc func(name string, args []string) ([]byte, error)
	calls      []mockCall
}

func (m *mockCommand) run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, mockCall{Dir: dir, Env: env, Name: name, Args: args})
	return m.outputFunc(name, args)
}

const inventoryListing = `{
  "_meta": {"hostvars": {"localhost": {"ansible_connection": "local"}}},
  "all": {"children": ["dev", "prod", "ungrouped"]},
  "dev": {"hosts": ["localhost"]},
  "prod": {"hosts": ["localhost"]},
  "ungrouped": {}
}`

func TestRunner_ListGroups(t *testing.T) {
	ctx := context.Background()

	t.Run("returns every declared group", func(t *testing.T) {
		cmd := &mockCommand{
			outputFunc: func(name string, args []string) ([]byte, error) {
				return []byte(inventoryListing), nil
			},
		}
		r := New(withCommand(cmd.run), WithInventoryBin("/opt/ansible/bin/ansible-inventory"))

		groups, err := r.ListGroups(ctx, "/tmp/working/inventory", "/tmp/working")
		gt.NoError(t, err).Required()
		gt.V(t, groups).Equal([]string{"all", "dev", "prod", "ungrouped"})

		gt.A(t, cmd.calls).Length(1)
		gt.Equal(t, cmd.calls[0].Name, "/opt/ansible/bin/ansible-inventory")
		gt.Equal(t, cmd.calls[0].Dir, "/tmp/working")
		gt.V(t, cmd.calls[0].Args).Equal([]string{"--inventory", "/tmp/working/inventory", "--list"})
	})

	t.Run("command failure", func(t *testing.T) {
		cmd := &mockCommand{
			outputFunc: func(name string, args []string) ([]byte, error) {
				return nil, &ExitError{Command: "ansible-inventory", Output: []byte("Unable to parse"), ExitCode: 1, err: errors.New("exit status 1")}
			},
		}
		_, err := New(withCommand(cmd.run)).ListGroups(ctx, "inventory", "/tmp")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagPlaybook))
	})

	t.Run("broken JSON", func(t *testing.T) {
		cmd := &mockCommand{
			outputFunc: func(name string, args []string) ([]byte, error) {
				return []byte("[WARNING]: not json"), nil
			},
		}
		_, err := New(withCommand(cmd.run)).ListGroups(ctx, "inventory", "/tmp")
		gt.Error(t, err)
	})
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()

	run := &model.PlaybookRun{
		Playbook:   "/tmp/working/site.yml",
		Inventory:  "/tmp/working/inventory",
		Group:      "dev",
		WorkDir:    "/tmp/working",
		Vars:       map[string]any{"env": "dev", "sts_disable": "true", "cf_build_folder": "/tmp/build"},
		Tags:       []string{"generate"},
		Connection: "local",
		Forks:      1,
	}

	t.Run("builds restricted command line", func(t *testing.T) {
		cmd := &mockCommand{
			outputFunc: func(name string, args []string) ([]byte, error) {
				return []byte("PLAY RECAP *****\nlocalhost : ok=3 changed=1 unreachable=0 failed=0\n"), nil
			},
		}
		r := New(withCommand(cmd.run), WithEnv("ANSIBLE_LOCAL_TEMP=/tmp/.ansible"))

		gt.NoError(t, r.Run(ctx, run)).Required()
		gt.A(t, cmd.calls).Length(1)

		call := cmd.calls[0]
		gt.Equal(t, call.Name, "ansible-playbook")
		gt.Equal(t, call.Dir, "/tmp/working")
		gt.V(t, call.Args[:8]).Equal([]string{
			"--inventory", "/tmp/working/inventory",
			"--connection", "local",
			"--forks", "1",
			"--tags", "generate",
		})
		gt.Equal(t, call.Args[8], "--extra-vars")
		gt.Equal(t, call.Args[10], "/tmp/working/site.yml")
		gt.A(t, call.Args).Length(11)

		var vars map[string]any
		gt.NoError(t, json.Unmarshal([]byte(call.Args[9]), &vars)).Required()
		gt.V(t, vars).Equal(map[string]any{"env": "dev", "sts_disable": "true", "cf_build_folder": "/tmp/build"})

		var hasTemp bool
		for _, e := range call.Env {
			if e == "ANSIBLE_LOCAL_TEMP=/tmp/.ansible" {
				hasTemp = true
			}
		}
		gt.True(t, hasTemp)
	})

	t.Run("check mode is never added unless requested", func(t *testing.T) {
		cmd := &mockCommand{
			outputFunc: func(name string, args []string) ([]byte, error) { return nil, nil },
		}
		gt.NoError(t, New(withCommand(cmd.run)).Run(ctx, run))
		for _, arg := range cmd.calls[0].Args {
			gt.Value(t, arg).NotEqual("--check")
		}
	})

	t.Run("failure carries output", func(t *testing.T) {
		cmd := &mockCommand{
			outputFunc: func(name string, args []string) ([]byte, error) {
				return nil, &ExitError{Command: "ansible-playbook", Output: []byte("fatal: [localhost]: FAILED!"), ExitCode: 2, err: errors.New("exit status 2")}
			},
		}
		err := New(withCommand(cmd.run)).Run(ctx, run)
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagPlaybook))

		e := goerr.Unwrap(err)
		gt.V(t, e).NotNil()
		gt.Equal(t, e.Values()["group"], any("dev"))
		gt.Equal(t, e.Values()["exit_code"], any(2))
		gt.String(t, e.Values()["output"].(string)).Contains("FAILED")
	})
}

func TestPlayRecap(t *testing.T) {
	out := []byte(`PLAY [generate] ****

TASK [render] ****
ok: [localhost]

PLAY RECAP *********************************************************************
localhost                  : ok=2    changed=1    unreachable=0    failed=0
`)
	gt.Equal(t, playRecap(out), "localhost : ok=2 changed=1 unreachable=0 failed=0")
	gt.Equal(t, playRecap([]byte("no recap")), "")
}

func TestExecCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		out, err := execCommand(ctx, t.TempDir(), []string{"PLAYPACK_TEST=value"}, "sh", "-c", "echo $PLAYPACK_TEST")
		gt.NoError(t, err)
		gt.Equal(t, string(out), "value\n")
	})

	t.Run("error", func(t *testing.T) {
		_, err := execCommand(ctx, t.TempDir(), nil, "sh", "-c", "echo broken >&2; exit 3")
		gt.Error(t, err)

		var exitErr *ExitError
		gt.True(t, errors.As(err, &exitErr))
		gt.Equal(t, exitErr.ExitCode, 3)
		gt.Equal(t, string(exitErr.Output), "broken\n")
		gt.String(t, err.Error()).Contains("broken")
	})
}
