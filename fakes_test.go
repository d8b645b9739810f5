package main

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"

	"github.com/google/go-github/v58/github"
)

func notFoundResponse() *github.Response {
	return &github.Response{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

type fakeIssues struct {
	mu        sync.Mutex
	comments  []*github.IssueComment
	numbers   []int
	createErr error
	issue     *github.Issue
	getErr    error
}

func (f *fakeIssues) CreateComment(ctx context.Context, owner, repo string, number int, comment *github.IssueComment) (*github.IssueComment, *github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, nil, f.createErr
	}
	f.comments = append(f.comments, comment)
	f.numbers = append(f.numbers, number)
	return comment, nil, nil
}

func (f *fakeIssues) Get(ctx context.Context, owner, repo string, number int) (*github.Issue, *github.Response, error) {
	return f.issue, nil, f.getErr
}

type fakePulls struct {
	mu        sync.Mutex
	comments  []*github.PullRequestComment
	failPaths map[string]bool
	// pages of ListFiles results, served in order.
	pages   [][]*github.CommitFile
	listErr error
	pr      *github.PullRequest
}

func (f *fakePulls) CreateComment(ctx context.Context, owner, repo string, number int, comment *github.PullRequestComment) (*github.PullRequestComment, *github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPaths[comment.GetPath()] {
		return nil, nil, errors.New("422 Validation Failed")
	}
	f.comments = append(f.comments, comment)
	return comment, nil, nil
}

func (f *fakePulls) ListFiles(ctx context.Context, owner, repo string, number int, opts *github.ListOptions) ([]*github.CommitFile, *github.Response, error) {
	if f.listErr != nil {
		return nil, nil, f.listErr
	}
	page := opts.Page
	if page == 0 {
		page = 1
	}
	if page > len(f.pages) {
		return nil, &github.Response{}, nil
	}
	resp := &github.Response{}
	if page < len(f.pages) {
		resp.NextPage = page + 1
	}
	return f.pages[page-1], resp, nil
}

func (f *fakePulls) Get(ctx context.Context, owner, repo string, number int) (*github.PullRequest, *github.Response, error) {
	return f.pr, nil, nil
}

type fakeRepos struct {
	mu            sync.Mutex
	defaultBranch string
	getErr        error
	// files is keyed by "ref:path".
	files     map[string]string
	dirs      map[string]bool
	failPaths map[string]bool
	requested []string
}

func (f *fakeRepos) Get(ctx context.Context, owner, repo string) (*github.Repository, *github.Response, error) {
	if f.getErr != nil {
		return nil, nil, f.getErr
	}
	return &github.Repository{
		Name:          github.String(repo),
		DefaultBranch: github.String(f.defaultBranch),
	}, nil, nil
}

func (f *fakeRepos) GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error) {
	key := opts.Ref + ":" + path
	f.mu.Lock()
	f.requested = append(f.requested, key)
	f.mu.Unlock()

	if f.failPaths[path] {
		return nil, nil, &github.Response{Response: &http.Response{StatusCode: http.StatusInternalServerError}}, errors.New("500 Internal Server Error")
	}
	if f.dirs[key] {
		return nil, []*github.RepositoryContent{{Name: github.String("child")}}, nil, nil
	}
	content, ok := f.files[key]
	if !ok {
		return nil, nil, notFoundResponse(), errors.New("404 Not Found")
	}
	return &github.RepositoryContent{
		Path:     github.String(path),
		SHA:      github.String("sha-" + path),
		Encoding: github.String("base64"),
		Content:  github.String(base64.StdEncoding.EncodeToString([]byte(content))),
	}, nil, nil, nil
}

func (f *fakeRepos) requestedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...)
}

type fakeGit struct {
	headSHA   string
	getErr    error
	createErr error
	gotRef    string
	created   *github.Reference
}

func (f *fakeGit) GetRef(ctx context.Context, owner, repo, ref string) (*github.Reference, *github.Response, error) {
	f.gotRef = ref
	if f.getErr != nil {
		return nil, nil, f.getErr
	}
	return &github.Reference{
		Ref:    github.String("refs/" + ref),
		Object: &github.GitObject{SHA: github.String(f.headSHA)},
	}, nil, nil
}

func (f *fakeGit) CreateRef(ctx context.Context, owner, repo string, ref *github.Reference) (*github.Reference, *github.Response, error) {
	if f.createErr != nil {
		return nil, nil, f.createErr
	}
	f.created = ref
	return &github.Reference{
		Ref:    ref.Ref,
		URL:    github.String("https://api.github.com/repos/" + owner + "/" + repo + "/git/" + ref.GetRef()),
		Object: &github.GitObject{SHA: ref.Object.SHA},
	}, nil, nil
}

type memoryStore struct {
	mu      sync.Mutex
	actions []Action
}

func (s *memoryStore) RecordAction(ctx context.Context, action Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

func (s *memoryStore) RecentActions(ctx context.Context, repo string, limit int) ([]Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Action(nil), s.actions...), nil
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) kinds() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, a := range s.actions {
		counts[a.Kind]++
	}
	return counts
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

type testEnv struct {
	issues   *fakeIssues
	pulls    *fakePulls
	repos    *fakeRepos
	git      *fakeGit
	store    *memoryStore
	notifier *recordingNotifier
	bot      *CodeBot
}

func newTestEnv() *testEnv {
	env := &testEnv{
		issues:   &fakeIssues{},
		pulls:    &fakePulls{},
		repos:    &fakeRepos{defaultBranch: "main", files: map[string]string{}},
		git:      &fakeGit{headSHA: "abc123"},
		store:    &memoryStore{},
		notifier: &recordingNotifier{},
	}
	config := &Config{
		GitHubWebURL: defaultWebURL,
		BranchPrefix: defaultBranchPrefix,
		ReviewMode:   ReviewModeContext,
		MaxParallel:  4,
		EventTimeout: defaultEventTimeout,
	}
	env.bot = NewCodeBot(config, GitHubServices{
		Issues:       env.issues,
		PullRequests: env.pulls,
		Repositories: env.repos,
		Git:          env.git,
	}, WithStore(env.store), WithNotifier(env.notifier))
	env.bot.randSuffix = func() string { return "k3x9q" }
	return env
}

var testRepo = RepoRef{Owner: "acme", Name: "widgets"}

func testPR() PullRequestContext {
	return PullRequestContext{
		Repo:    testRepo,
		Number:  7,
		HeadSHA: "headsha",
		BaseRef: "main",
		BaseSHA: "basesha",
		URL:     "https://api.github.com/repos/acme/widgets/pulls/7",
	}
}
