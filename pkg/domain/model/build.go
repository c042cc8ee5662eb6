package model

// FetchRequest describes a working copy to materialize
type FetchRequest struct {
	URL         string
	Revision    string
	Branch      string
	Dir         string
	Credentials *Credentials
}

// WorkingCopy is a checked out repository on local disk
type WorkingCopy struct {
	Dir      string
	Revision string // Revision HEAD points to after checkout
	Refs     int    // Number of imported branch and tag refs
}

// PlaybookRun is one ansible-playbook execution for an environment group
type PlaybookRun struct {
	Playbook   string
	Inventory  string
	Group      string
	WorkDir    string
	Vars       map[string]any
	Tags       []string
	Connection string
	Forks      int
	Check      bool
}

// Archive is a zip file produced from the build directory
type Archive struct {
	Path  string
	Files int
	Size  int64
}

// PublishResult is what the storage backend returned for an upload
type PublishResult struct {
	Backend   string `json:"backend"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Location  string `json:"location"`
	ETag      string `json:"etag,omitempty"`
	VersionID string `json:"version_id,omitempty"`
}

// BuildReport summarizes a handled push event
type BuildReport struct {
	InvocationID string         `json:"invocation_id"`
	Repository   string         `json:"repository"`
	Ref          string         `json:"ref"`
	Revision     string         `json:"revision"`
	Skipped      bool           `json:"skipped"`
	SkipReason   string         `json:"skip_reason,omitempty"`
	Groups       []string       `json:"groups,omitempty"`
	ArchiveFiles int            `json:"archive_files,omitempty"`
	ArchiveSize  int64          `json:"archive_size,omitempty"`
	Published    *PublishResult `json:"published,omitempty"`
}
