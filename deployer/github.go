package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"
)

// githubHost implements host on the GitHub REST API. One instance is created
// at startup with immutable credentials and shared by all orchestration runs.
type githubHost struct {
	client *github.Client
	login  string
	name   string
}

func newGithubHost(ctx context.Context, token string) (*githubHost, error) {
	client := github.NewClient(nil).WithAuthToken(token)
	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("error getting authenticated user: %w", err)
	}
	return &githubHost{
		client: client,
		login:  user.GetLogin(),
		name:   user.GetName(),
	}, nil
}

func (h *githubHost) Account() (string, string) {
	return h.login, h.name
}

// statusError maps provider status codes onto the sentinel errors used for
// idempotency classification. Unmapped errors pass through unchanged.
func statusError(err error, codes map[int]error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		if mapped, ok := codes[ghErr.Response.StatusCode]; ok {
			return mapped
		}
	}
	return err
}

func (h *githubHost) CreateRepo(ctx context.Context, name string) (*hostRepo, error) {
	repo, _, err := h.client.Repositories.Create(ctx, "", &github.Repository{
		Name:    github.String(name),
		Private: github.Bool(false),
	})
	if err != nil {
		return nil, statusError(err, map[int]error{
			http.StatusUnprocessableEntity: errDuplicate,
		})
	}
	return h.wrap(repo), nil
}

func (h *githubHost) GetRepo(ctx context.Context, name string) (*hostRepo, error) {
	repo, _, err := h.client.Repositories.Get(ctx, h.login, name)
	if err != nil {
		return nil, statusError(err, map[int]error{
			http.StatusNotFound: errNotFound,
		})
	}
	return h.wrap(repo), nil
}

func (h *githubHost) wrap(repo *github.Repository) *hostRepo {
	branch := repo.GetDefaultBranch()
	if branch == "" {
		branch = "main"
	}
	return &hostRepo{
		Owner:         h.login,
		Name:          repo.GetName(),
		DefaultBranch: branch,
		HTMLURL:       repo.GetHTMLURL(),
	}
}

func (h *githubHost) GetFile(ctx context.Context, repo *hostRepo, path string) (string, error) {
	fc, _, _, err := h.client.Repositories.GetContents(ctx, repo.Owner, repo.Name, path,
		&github.RepositoryContentGetOptions{Ref: repo.DefaultBranch})
	if err != nil {
		return "", statusError(err, map[int]error{
			http.StatusNotFound: errNotFound,
		})
	}
	if fc == nil { // path is a directory
		return "", errNotFound
	}
	return fc.GetContent()
}

func (h *githubHost) BranchHead(ctx context.Context, repo *hostRepo) (string, string, error) {
	ref, _, err := h.client.Git.GetRef(ctx, repo.Owner, repo.Name, "refs/heads/"+repo.DefaultBranch)
	if err != nil {
		// 409 is returned for git operations on an empty repository
		return "", "", statusError(err, map[int]error{
			http.StatusNotFound: errNotFound,
			http.StatusConflict: errNotFound,
		})
	}
	commit, _, err := h.client.Git.GetCommit(ctx, repo.Owner, repo.Name, ref.GetObject().GetSHA())
	if err != nil {
		return "", "", err
	}
	return commit.GetSHA(), commit.GetTree().GetSHA(), nil
}

func (h *githubHost) CreateBlob(ctx context.Context, repo *hostRepo, content string) (string, error) {
	blob, _, err := h.client.Git.CreateBlob(ctx, repo.Owner, repo.Name, &github.Blob{
		Content:  github.String(content),
		Encoding: github.String("utf-8"),
	})
	if err != nil {
		return "", err
	}
	return blob.GetSHA(), nil
}

func (h *githubHost) CreateTree(ctx context.Context, repo *hostRepo, baseTreeSHA string, entries []treeEntry) (string, error) {
	ghEntries := make([]*github.TreeEntry, len(entries))
	for i, e := range entries {
		ghEntries[i] = &github.TreeEntry{
			Path: github.String(e.Path),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  github.String(e.BlobSHA),
		}
	}
	tree, _, err := h.client.Git.CreateTree(ctx, repo.Owner, repo.Name, baseTreeSHA, ghEntries)
	if err != nil {
		return "", err
	}
	return tree.GetSHA(), nil
}

func (h *githubHost) CreateCommit(ctx context.Context, repo *hostRepo, message, treeSHA string, parents []string) (string, error) {
	ghParents := make([]*github.Commit, len(parents))
	for i, sha := range parents {
		ghParents[i] = &github.Commit{SHA: github.String(sha)}
	}
	commit, _, err := h.client.Git.CreateCommit(ctx, repo.Owner, repo.Name, &github.Commit{
		Message: github.String(message),
		Tree:    &github.Tree{SHA: github.String(treeSHA)},
		Parents: ghParents,
	}, nil)
	if err != nil {
		return "", err
	}
	return commit.GetSHA(), nil
}

func (h *githubHost) AdvanceBranch(ctx context.Context, repo *hostRepo, commitSHA string, create bool) error {
	ref := &github.Reference{
		Ref:    github.String("refs/heads/" + repo.DefaultBranch),
		Object: &github.GitObject{SHA: github.String(commitSHA)},
	}
	var err error
	if create {
		_, _, err = h.client.Git.CreateRef(ctx, repo.Owner, repo.Name, ref)
	} else {
		_, _, err = h.client.Git.UpdateRef(ctx, repo.Owner, repo.Name, ref, false)
	}
	return err
}

func (h *githubHost) EnablePages(ctx context.Context, repo *hostRepo) error {
	_, _, err := h.client.Repositories.EnablePages(ctx, repo.Owner, repo.Name, &github.Pages{
		Source: &github.PagesSource{
			Branch: github.String(repo.DefaultBranch),
			Path:   github.String("/"),
		},
	})
	if err != nil {
		return statusError(err, map[int]error{
			http.StatusConflict: errDuplicate,
		})
	}
	return nil
}
