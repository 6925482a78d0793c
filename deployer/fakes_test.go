package main

import (
	"context"
	"fmt"
	"sync"
)

// fakeHost is an in-memory hosting provider for tests. It models repositories,
// blobs, trees, commits and branch heads closely enough to verify the
// commit-construction protocol.
type fakeHost struct {
	mu    sync.Mutex
	login string
	name  string

	repos   map[string]*fakeRepoState
	blobs   map[string]string
	trees   map[string][]treeEntry
	commits map[string]fakeCommit
	pages   map[string]bool

	pagesErr    error // forced EnablePages failure
	createCalls int
	seq         int
}

type fakeRepoState struct {
	repo     *hostRepo
	head     string            // commit sha, empty for a fresh repository
	files    map[string]string // materialized tree at head
	advances int               // times the branch head moved
}

type fakeCommit struct {
	message string
	tree    string
	parents []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		login:   "octo",
		name:    "Octo Cat",
		repos:   make(map[string]*fakeRepoState),
		blobs:   make(map[string]string),
		trees:   make(map[string][]treeEntry),
		commits: make(map[string]fakeCommit),
		pages:   make(map[string]bool),
	}
}

func (f *fakeHost) sha(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeHost) Account() (string, string) {
	return f.login, f.name
}

func (f *fakeHost) CreateRepo(ctx context.Context, name string) (*hostRepo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if _, found := f.repos[name]; found {
		return nil, errDuplicate
	}
	state := &fakeRepoState{
		repo: &hostRepo{
			Owner:         f.login,
			Name:          name,
			DefaultBranch: "main",
			HTMLURL:       "https://github.com/" + f.login + "/" + name,
		},
		files: make(map[string]string),
	}
	f.repos[name] = state
	return state.repo, nil
}

func (f *fakeHost) GetRepo(ctx context.Context, name string) (*hostRepo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, found := f.repos[name]
	if !found {
		return nil, errNotFound
	}
	return state.repo, nil
}

func (f *fakeHost) GetFile(ctx context.Context, repo *hostRepo, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.repos[repo.Name]
	if state == nil || state.head == "" {
		return "", errNotFound
	}
	content, found := state.files[path]
	if !found {
		return "", errNotFound
	}
	return content, nil
}

func (f *fakeHost) BranchHead(ctx context.Context, repo *hostRepo) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.repos[repo.Name]
	if state == nil || state.head == "" {
		return "", "", errNotFound
	}
	return state.head, f.commits[state.head].tree, nil
}

func (f *fakeHost) CreateBlob(ctx context.Context, repo *hostRepo, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sha := f.sha("blob")
	f.blobs[sha] = content
	return sha, nil
}

func (f *fakeHost) CreateTree(ctx context.Context, repo *hostRepo, baseTreeSHA string, entries []treeEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	merged := make(map[string]string)
	for _, e := range f.trees[baseTreeSHA] {
		merged[e.Path] = e.BlobSHA
	}
	for _, e := range entries {
		merged[e.Path] = e.BlobSHA
	}
	flat := make([]treeEntry, 0, len(merged))
	for path, blobSHA := range merged {
		flat = append(flat, treeEntry{Path: path, BlobSHA: blobSHA})
	}
	sha := f.sha("tree")
	f.trees[sha] = flat
	return sha, nil
}

func (f *fakeHost) CreateCommit(ctx context.Context, repo *hostRepo, message, treeSHA string, parents []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sha := f.sha("commit")
	f.commits[sha] = fakeCommit{message: message, tree: treeSHA, parents: parents}
	return sha, nil
}

func (f *fakeHost) AdvanceBranch(ctx context.Context, repo *hostRepo, commitSHA string, create bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.repos[repo.Name]
	if create && state.head != "" {
		return fmt.Errorf("branch already exists")
	}
	if !create && state.head == "" {
		return errNotFound
	}
	state.head = commitSHA
	state.advances++
	for _, e := range f.trees[f.commits[commitSHA].tree] {
		state.files[e.Path] = f.blobs[e.BlobSHA]
	}
	return nil
}

func (f *fakeHost) EnablePages(ctx context.Context, repo *hostRepo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pagesErr != nil {
		return f.pagesErr
	}
	if f.pages[repo.Name] {
		return errDuplicate
	}
	f.pages[repo.Name] = true
	return nil
}

func (f *fakeHost) state(name string) *fakeRepoState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repos[name]
}

// stubGenerator returns canned artifacts and records what it was called with.
type stubGenerator struct {
	mu       sync.Mutex
	code     string
	readme   string
	codeErr  error
	briefs   []string
	existing []string
	block    chan struct{} // when set, generateCode blocks until closed
}

func (s *stubGenerator) generateCode(ctx context.Context, brief, existingCode string) (string, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.briefs = append(s.briefs, brief)
	s.existing = append(s.existing, existingCode)
	s.mu.Unlock()
	return s.code, s.codeErr
}

func (s *stubGenerator) generateReadme(ctx context.Context, brief, code string) (string, error) {
	return s.readme, nil
}

func (s *stubGenerator) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.existing)
}
