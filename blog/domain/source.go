package domain

import "context"

// SourceRepository is a remote copy of the source directory. Failed calls return *RemoteError.
type SourceRepository interface {
	// ListDocuments returns the paths of the files directly under dir at ref
	ListDocuments(ctx context.Context, dir string, ref string) ([]string, error)
	// GetFileContents returns the raw bytes of the file at path; ref may be a branch, tag or commit SHA
	GetFileContents(ctx context.Context, path string, ref string) ([]byte, error)
	GetDefaultBranchName(ctx context.Context) (string, error)
	// GetRepoFullName returns "owner/name", used in logs and errors
	GetRepoFullName() string
}
