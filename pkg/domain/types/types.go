package types

import "github.com/m-mizutani/goerr/v2"

// Version is overwritten at build time via -ldflags
var Version = "dev"

// ServiceName is used in health responses and log attributes
const ServiceName = "playpack"

// Error tags classify failures of a build so callers can tell a broken
// configuration from a failed upload without string matching.
var (
	ErrTagConfig       = goerr.NewTag("config")
	ErrTagInvalidEvent = goerr.NewTag("invalid_event")
	ErrTagCredential   = goerr.NewTag("credential")
	ErrTagTransport    = goerr.NewTag("transport")
	ErrTagPlaybook     = goerr.NewTag("playbook")
	ErrTagArchive      = goerr.NewTag("archive")
	ErrTagPublish      = goerr.NewTag("publish")
)

// ReservedGroups are inventory groups every Ansible inventory declares
// implicitly. They never drive a playbook run.
var ReservedGroups = []string{"all", "ungrouped"}

// ZeroRevision is the "after" value of a push that deleted the branch
const ZeroRevision = "0000000000000000000000000000000000000000"
