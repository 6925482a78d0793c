package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"code.linksmart.eu/dt/page-deployer/deployer/model"
)

var (
	// sentinel errors for the three-way idempotency classification
	errDuplicate = errors.New("already exists")
	errNotFound  = errors.New("not found")
)

// hostRepo is a handle to a remote repository.
type hostRepo struct {
	Owner         string
	Name          string
	DefaultBranch string
	HTMLURL       string
}

type treeEntry struct {
	Path    string
	BlobSHA string
}

// host is the set of hosting-provider operations the publisher invokes.
// The GitHub-backed implementation lives in github.go.
type host interface {
	Account() (login, displayName string)
	// CreateRepo returns errDuplicate when the name is taken
	CreateRepo(ctx context.Context, name string) (*hostRepo, error)
	GetRepo(ctx context.Context, name string) (*hostRepo, error)
	// GetFile returns errNotFound when the path is missing on the default branch
	GetFile(ctx context.Context, repo *hostRepo, path string) (string, error)
	// BranchHead returns errNotFound when the repository is empty
	BranchHead(ctx context.Context, repo *hostRepo) (commitSHA, treeSHA string, err error)
	CreateBlob(ctx context.Context, repo *hostRepo, content string) (string, error)
	CreateTree(ctx context.Context, repo *hostRepo, baseTreeSHA string, entries []treeEntry) (string, error)
	CreateCommit(ctx context.Context, repo *hostRepo, message, treeSHA string, parents []string) (string, error)
	AdvanceBranch(ctx context.Context, repo *hostRepo, commitSHA string, create bool) error
	// EnablePages returns errDuplicate when the site is already enabled
	EnablePages(ctx context.Context, repo *hostRepo) error
}

// publisher owns the commit-construction protocol against the hosting provider.
type publisher struct {
	host   host
	locks  *mutexMap
	settle time.Duration
}

func newPublisher(h host, settle time.Duration) *publisher {
	return &publisher{
		host:   h,
		locks:  newMutexMap(),
		settle: settle,
	}
}

// ensureRepo creates the repository for the task, or fetches it when a
// previous round already created it. This is what makes later rounds target
// the same repository as round one.
func (p *publisher) ensureRepo(ctx context.Context, taskID string) (*hostRepo, error) {
	repo, err := p.host.CreateRepo(ctx, taskID)
	if err == nil {
		log.Println("publisher: created repository:", taskID)
		return repo, nil
	}
	if errors.Is(err, errDuplicate) {
		log.Printf("publisher: repository %s already exists, fetching it", taskID)
		return p.host.GetRepo(ctx, taskID)
	}
	return nil, fmt.Errorf("error creating repository %s: %w", taskID, err)
}

// priorCode reads a file from the task repository, used on revision rounds.
func (p *publisher) priorCode(ctx context.Context, taskID, path string) (string, error) {
	repo, err := p.ensureRepo(ctx, taskID)
	if err != nil {
		return "", err
	}
	content, err := p.host.GetFile(ctx, repo, path)
	if err != nil {
		return "", fmt.Errorf("error reading %s from %s: %w", path, taskID, err)
	}
	return content, nil
}

// deploy commits the file set as one atomic commit, enables pages and returns
// the addressable URLs. Hosting errors other than the expected idempotency
// conditions propagate to the caller.
func (p *publisher) deploy(ctx context.Context, taskID string, files map[string]string, round int) (*model.DeploymentResult, error) {
	repo, err := p.ensureRepo(ctx, taskID)
	if err != nil {
		return nil, err
	}

	login, displayName := p.host.Account()
	if displayName == "" {
		displayName = login
	}
	files["LICENSE"] = mitLicense(displayName)

	p.locks.lock(taskID)
	commitSHA, err := p.commit(ctx, repo, files, round)
	p.locks.unlock(taskID)
	if err != nil {
		return nil, err
	}
	log.Printf("publisher: committed changes to %s: %s", repo.Name, commitSHA)

	err = p.enablePages(ctx, repo)
	if err != nil {
		return nil, err
	}

	if p.settle > 0 {
		// the pages build pipeline needs a moment to pick up the commit; the
		// returned URL may not be live immediately either way
		log.Println("publisher: waiting", p.settle, "for the pages build to start")
		time.Sleep(p.settle)
	}

	return &model.DeploymentResult{
		RepoURL:   repo.HTMLURL,
		CommitSHA: commitSHA,
		PagesURL:  fmt.Sprintf("https://%s.github.io/%s/", login, repo.Name),
	}, nil
}

// commit writes every file as a blob, builds a single tree on top of the
// branch head and advances the branch by exactly one commit. An empty
// repository gets the file set as its first commit.
func (p *publisher) commit(ctx context.Context, repo *hostRepo, files map[string]string, round int) (string, error) {
	message := fmt.Sprintf("feat: Round %d - project setup", round)
	if round > 1 {
		message = fmt.Sprintf("feat: Round %d - revision based on new brief", round)
	}

	var empty bool
	parentSHA, baseTreeSHA, err := p.host.BranchHead(ctx, repo)
	if err != nil {
		if !errors.Is(err, errNotFound) {
			return "", fmt.Errorf("error reading branch head: %w", err)
		}
		empty = true
	}

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	entries := make([]treeEntry, 0, len(paths))
	for _, path := range paths {
		blobSHA, err := p.host.CreateBlob(ctx, repo, files[path])
		if err != nil {
			return "", fmt.Errorf("error creating blob for %s: %w", path, err)
		}
		entries = append(entries, treeEntry{Path: path, BlobSHA: blobSHA})
	}

	treeSHA, err := p.host.CreateTree(ctx, repo, baseTreeSHA, entries)
	if err != nil {
		return "", fmt.Errorf("error creating tree: %w", err)
	}

	var parents []string
	if !empty {
		parents = []string{parentSHA}
	}
	commitSHA, err := p.host.CreateCommit(ctx, repo, message, treeSHA, parents)
	if err != nil {
		return "", fmt.Errorf("error creating commit: %w", err)
	}

	err = p.host.AdvanceBranch(ctx, repo, commitSHA, empty)
	if err != nil {
		return "", fmt.Errorf("error updating branch %s: %w", repo.DefaultBranch, err)
	}

	return commitSHA, nil
}

func (p *publisher) enablePages(ctx context.Context, repo *hostRepo) error {
	err := p.host.EnablePages(ctx, repo)
	if errors.Is(err, errDuplicate) {
		log.Println("publisher: pages already enabled for", repo.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("error enabling pages for %s: %w", repo.Name, err)
	}
	log.Println("publisher: pages site created for", repo.Name)
	return nil
}
