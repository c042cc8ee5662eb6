package config

import "github.com/urfave/cli/v3"

// Workspace holds the local paths a build writes to. Every path is removed
// before and after each build.
type Workspace struct {
	CloneDir    string
	BuildDir    string
	ArchivePath string
}

// Flags returns CLI flags for workspace configuration
func (c *Workspace) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "clone-dir",
			Usage:       "Working copy directory",
			Value:       "/tmp/working",
			Destination: &c.CloneDir,
			Sources:     cli.EnvVars("PLAYPACK_CLONE_DIR"),
		},
		&cli.StringFlag{
			Name:        "build-dir",
			Usage:       "Directory playbooks write artifacts to (cf_build_folder)",
			Value:       "/tmp/build",
			Destination: &c.BuildDir,
			Sources:     cli.EnvVars("PLAYPACK_BUILD_DIR"),
		},
		&cli.StringFlag{
			Name:        "archive-path",
			Usage:       "Path of the zip archive before upload",
			Value:       "/tmp/build.zip",
			Destination: &c.ArchivePath,
			Sources:     cli.EnvVars("PLAYPACK_ARCHIVE_PATH"),
		},
	}
}
