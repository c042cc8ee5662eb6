package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/playpack/pkg/domain/types"
)

const branchRefPrefix = "refs/heads/"

// EventSource tells where a push notification was delivered from
type EventSource string

const (
	EventSourceSNS     EventSource = "sns"
	EventSourceSNSHTTP EventSource = "sns_http"
	EventSourceGitHub  EventSource = "github"
	EventSourceInvoke  EventSource = "invoke"
)

// Repository is the part of a push payload identifying the pushed repository
type Repository struct {
	CloneURL string `json:"clone_url"`
	Name     string `json:"name"`
}

// PushEvent is a source-control push notification. Only the fields needed to
// build are kept.
type PushEvent struct {
	ID         string      `json:"-"` // Delivery or message ID, for logging only
	Source     EventSource `json:"-"`
	Ref        string      `json:"ref"`
	After      string      `json:"after"`
	Deleted    bool        `json:"deleted"`
	Repository Repository  `json:"repository"`
}

// BranchRef returns the full ref name of a branch
func BranchRef(branch string) string {
	return branchRefPrefix + branch
}

// IsBranch reports whether the event was pushed to exactly the given branch
func (e *PushEvent) IsBranch(branch string) bool {
	return e.Ref == BranchRef(branch)
}

// Branch returns the short branch name, or empty when ref is not a branch
func (e *PushEvent) Branch() string {
	if !strings.HasPrefix(e.Ref, branchRefPrefix) {
		return ""
	}
	return strings.TrimPrefix(e.Ref, branchRefPrefix)
}

// IsDeletion reports whether the push removed the branch. There is nothing to
// build in that case.
func (e *PushEvent) IsDeletion() bool {
	return e.Deleted || e.After == types.ZeroRevision
}

// Validate checks the fields required for a build
func (e *PushEvent) Validate() error {
	if e.After == "" {
		return goerr.New("push event has no revision", goerr.T(types.ErrTagInvalidEvent), goerr.V("ref", e.Ref))
	}
	if e.Repository.CloneURL == "" {
		return goerr.New("push event has no clone URL", goerr.T(types.ErrTagInvalidEvent), goerr.V("ref", e.Ref))
	}
	if e.Repository.Name == "" {
		return goerr.New("push event has no repository name", goerr.T(types.ErrTagInvalidEvent), goerr.V("clone_url", e.Repository.CloneURL))
	}
	return nil
}
