package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dfryer1193/cms/blog/domain"
	"github.com/google/go-github/v75/github"
)

var _ domain.SourceRepository = (*GithubSourceRepository)(nil)

// GithubSourceRepository reads source documents through the GitHub contents API
type GithubSourceRepository struct {
	client *github.Client
	owner  string
	repo   string
}

func NewGithubSourceRepository(client *github.Client, owner string, repo string) domain.SourceRepository {
	return &GithubSourceRepository{
		client: client,
		owner:  owner,
		repo:   repo,
	}
}

// ListDocuments returns the paths of the regular files directly under dir.
// Sub-directories and symlinks are left out; the caller decides which files are documents.
func (g *GithubSourceRepository) ListDocuments(ctx context.Context, dir string, ref string) ([]string, error) {
	op := fmt.Sprintf("listing %s at %s", dir, ref)

	file, entries, err := g.contents(ctx, op, dir, ref)
	if err != nil {
		return nil, err
	}
	if file != nil {
		return nil, g.remoteError(op, fmt.Errorf("%s is a file, not a directory", dir))
	}

	var paths []string
	for _, entry := range entries {
		if entry.GetType() == "file" {
			paths = append(paths, entry.GetPath())
		}
	}

	return paths, nil
}

// GetFileContents returns the decoded contents of the file at path
func (g *GithubSourceRepository) GetFileContents(ctx context.Context, path string, ref string) ([]byte, error) {
	op := fmt.Sprintf("fetching %s at %s", path, ref)

	file, _, err := g.contents(ctx, op, path, ref)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, g.remoteError(op, fmt.Errorf("%s is a directory, not a file", path))
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, g.remoteError(op, fmt.Errorf("failed to decode content: %w", err))
	}

	return []byte(content), nil
}

func (g *GithubSourceRepository) GetRepoFullName() string {
	return g.owner + "/" + g.repo
}

func (g *GithubSourceRepository) GetDefaultBranchName(ctx context.Context) (string, error) {
	repo, resp, err := g.client.Repositories.Get(ctx, g.owner, g.repo)
	if err != nil {
		return "", g.apiError("resolving the default branch", resp, err)
	}

	branch := repo.GetDefaultBranch()
	if branch == "" {
		return "", g.remoteError("resolving the default branch", errors.New("repository has no default branch"))
	}

	return branch, nil
}

func (g *GithubSourceRepository) contents(ctx context.Context, op string, path string, ref string) (*github.RepositoryContent, []*github.RepositoryContent, error) {
	opts := &github.RepositoryContentGetOptions{Ref: ref}

	file, entries, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path, opts)
	if err != nil {
		return nil, nil, g.apiError(op, resp, err)
	}

	return file, entries, nil
}

func (g *GithubSourceRepository) remoteError(op string, err error) error {
	return &domain.RemoteError{Op: op, Repo: g.GetRepoFullName(), Err: err}
}

// apiError keeps the HTTP status of a failed call so a missing file can be told apart from an outage
func (g *GithubSourceRepository) apiError(op string, resp *github.Response, err error) error {
	remoteErr := &domain.RemoteError{Op: op, Repo: g.GetRepoFullName(), Err: err}

	var errResp *github.ErrorResponse
	switch {
	case errors.As(err, &errResp) && errResp.Response != nil:
		remoteErr.Status = errResp.Response.StatusCode
		if errResp.Message != "" {
			remoteErr.Err = errors.New(errResp.Message)
		}
	case resp != nil && resp.Response != nil && resp.StatusCode >= http.StatusBadRequest:
		remoteErr.Status = resp.StatusCode
	}

	return remoteErr
}
