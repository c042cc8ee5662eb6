package config

import (
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/playpack/pkg/infra/ansible"
)

// Playbook holds playbook execution configuration
type Playbook struct {
	File         string
	Inventory    string
	ExtraVars    map[string]string
	PlaybookBin  string
	InventoryBin string
	TempDir      string
}

// Flags returns CLI flags for playbook configuration
func (c *Playbook) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "playbook-file",
			Usage:       "Playbook path, site.yml in the working copy if empty",
			Destination: &c.File,
			Sources:     cli.EnvVars("PLAYBOOK_FILE"),
		},
		&cli.StringFlag{
			Name:        "inventory-file",
			Usage:       "Inventory path, inventory in the working copy if empty",
			Destination: &c.Inventory,
			Sources:     cli.EnvVars("INVENTORY_FILE"),
		},
		&cli.StringMapFlag{
			Name:        "extra-var",
			Usage:       "Base variable passed to every run (key=value), overridden by env, sts_disable and cf_build_folder",
			Destination: &c.ExtraVars,
			Sources:     cli.EnvVars("PLAYBOOK_EXTRA_VARS"),
		},
		&cli.StringFlag{
			Name:        "ansible-playbook-bin",
			Usage:       "ansible-playbook executable",
			Value:       "ansible-playbook",
			Destination: &c.PlaybookBin,
			Sources:     cli.EnvVars("PLAYPACK_ANSIBLE_PLAYBOOK_BIN"),
		},
		&cli.StringFlag{
			Name:        "ansible-inventory-bin",
			Usage:       "ansible-inventory executable",
			Value:       "ansible-inventory",
			Destination: &c.InventoryBin,
			Sources:     cli.EnvVars("PLAYPACK_ANSIBLE_INVENTORY_BIN"),
		},
		&cli.StringFlag{
			Name:        "ansible-temp-dir",
			Usage:       "Writable directory for Ansible temporary files",
			Value:       "/tmp/ansible",
			Destination: &c.TempDir,
			Sources:     cli.EnvVars("PLAYPACK_ANSIBLE_TEMP_DIR"),
		},
	}
}

// NewRunner creates the Ansible runner
func (c *Playbook) NewRunner() *ansible.Runner {
	opts := []ansible.Option{
		ansible.WithPlaybookBin(c.PlaybookBin),
		ansible.WithInventoryBin(c.InventoryBin),
	}
	if c.TempDir != "" {
		opts = append(opts, ansible.WithEnv(
			"ANSIBLE_LOCAL_TEMP="+filepath.Join(c.TempDir, "local"),
			"ANSIBLE_REMOTE_TEMP="+filepath.Join(c.TempDir, "remote"),
		))
	}
	return ansible.New(opts...)
}
