package model

// RepoStatus represents the lifecycle state of a repository.
type RepoStatus string

const (
	RepoStatusPending      RepoStatus = "pending"
	RepoStatusInitializing RepoStatus = "initializing"
	RepoStatusMirroring    RepoStatus = "mirroring"
	RepoStatusActive       RepoStatus = "active"
	RepoStatusFailed       RepoStatus = "failed"
	RepoStatusArchived     RepoStatus = "archived"
)

// RepoKind distinguishes plain bare repositories from mirrors of an external
// source. Every mirror is also queryable as a plain repository; the
// mirror-specific settings live in a side record keyed by the same ID.
type RepoKind string

const (
	RepoKindBare   RepoKind = "bare"
	RepoKindMirror RepoKind = "mirror"
)

// SourceType identifies the external host a mirror tracks.
type SourceType string

const (
	SourceGitHub    SourceType = "github"
	SourceGitLab    SourceType = "gitlab"
	SourceGitea     SourceType = "gitea"
	SourceBitbucket SourceType = "bitbucket"
	SourceCustom    SourceType = "custom"
)

// SyncStatus represents the state of one synchronization attempt.
type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "pending"
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// Permission is an access level on a repository. Levels are ordered; access
// resolution always takes the maximum across all contributing sources.
type Permission string

const (
	PermissionNone  Permission = "none"
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAdmin Permission = "admin"
)

// Rank returns the ordering of a permission level (none=0 .. admin=3).
// Unknown values rank as none.
func (p Permission) Rank() int {
	switch p {
	case PermissionRead:
		return 1
	case PermissionWrite:
		return 2
	case PermissionAdmin:
		return 3
	default:
		return 0
	}
}

// MaxPermission returns the higher-ranked of two permission levels.
func MaxPermission(a, b Permission) Permission {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
