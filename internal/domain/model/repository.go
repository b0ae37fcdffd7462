package model

import (
	"strings"
	"time"
)

// Repository represents a hosted Git repository, either a plain bare
// repository or a mirror of an external source (Kind). (OrganisationID, Name)
// is unique; LocalPath is unique system-wide.
type Repository struct {
	ID             int64
	OrganisationID int64
	Name           string
	Description    string
	Kind           RepoKind
	Status         RepoStatus
	LocalPath      string
	IsBare         bool
	IsPublic       bool
	OwnerID        *int64 // Profile that created the repository; nullable.

	// Git metadata refreshed after a successful clone or sync.
	DefaultBranch  string
	LastCommitHash string
	TotalCommits   int

	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MirrorSettings is the mirror side record, keyed by the repository ID.
// Present only for repositories with Kind == RepoKindMirror.
type MirrorSettings struct {
	RepositoryID        int64
	SourceURL           string
	SourceType          SourceType
	AutoSync            bool
	SyncIntervalSeconds int
	LastSyncedAt        *time.Time
	ConsecutiveFailures int
}

// Mirror pairs a repository with its mirror settings.
type Mirror struct {
	Repository
	Settings MirrorSettings
}

// Branch is a ref snapshot recorded after a clone or sync.
type Branch struct {
	ID           int64
	RepositoryID int64
	Name         string
	CommitHash   string
	IsDefault    bool
	UpdatedAt    time.Time
}

// SanitizeName reduces a repository name to the characters allowed in a
// local storage path component: letters, digits, '-' and '_'.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		}
	}
	return b.String()
}
