package main

import (
	"context"
	"testing"

	"github.com/google/go-github/v58/github"
)

func TestPullRequestContextFromEvent(t *testing.T) {
	event := &github.PullRequestEvent{
		Action: github.String("opened"),
		Repo: &github.Repository{
			Name:  github.String("widgets"),
			Owner: &github.User{Login: github.String("acme")},
		},
		PullRequest: &github.PullRequest{
			Number: github.Int(7),
			Title:  github.String("Add feature"),
			URL:    github.String("https://api.github.com/repos/acme/widgets/pulls/7"),
			Head:   &github.PullRequestBranch{SHA: github.String("headsha")},
			Base:   &github.PullRequestBranch{SHA: github.String("basesha"), Ref: github.String("main")},
		},
	}

	pr := PullRequestContextFromEvent(event)
	want := PullRequestContext{
		Repo:    testRepo,
		Number:  7,
		Title:   "Add feature",
		HeadSHA: "headsha",
		BaseRef: "main",
		BaseSHA: "basesha",
		URL:     "https://api.github.com/repos/acme/widgets/pulls/7",
	}
	if pr != want {
		t.Errorf("PullRequestContextFromEvent() = %+v, want %+v", pr, want)
	}

	base := pr.BaseBranch()
	if base.Name != "main" || base.SHA != "basesha" || base.URL != want.URL {
		t.Errorf("BaseBranch() = %+v", base)
	}
}

func TestIssueContextFromEvent(t *testing.T) {
	event := &github.IssuesEvent{
		Repo: &github.Repository{
			Name:  github.String("widgets"),
			Owner: &github.User{Login: github.String("acme")},
		},
		Issue: &github.Issue{Number: github.Int(12), Title: github.String("Fix login")},
	}

	issue := IssueContextFromEvent(event)
	if issue != (IssueContext{Repo: testRepo, Number: 12, Title: "Fix login"}) {
		t.Errorf("IssueContextFromEvent() = %+v", issue)
	}
	if issue.Repo.String() != "acme/widgets" {
		t.Errorf("String() = %q", issue.Repo.String())
	}
}

func TestNewGitHubClient(t *testing.T) {
	client, err := NewGitHubClient(context.Background(), &Config{GitHubToken: "ghp_testtoken123"})
	if err != nil {
		t.Fatalf("NewGitHubClient() error = %v", err)
	}
	if client.BaseURL.String() != "https://api.github.com/" {
		t.Errorf("BaseURL = %s", client.BaseURL)
	}

	enterprise, err := NewGitHubClient(context.Background(), &Config{
		GitHubToken:  "ghp_testtoken123",
		GitHubAPIURL: "https://git.example.com",
	})
	if err != nil {
		t.Fatalf("NewGitHubClient(enterprise) error = %v", err)
	}
	if enterprise.BaseURL.String() != "https://git.example.com/api/v3/" {
		t.Errorf("enterprise BaseURL = %s", enterprise.BaseURL)
	}

	services := ServicesFromClient(enterprise)
	if services.Issues == nil || services.PullRequests == nil || services.Repositories == nil || services.Git == nil {
		t.Errorf("services = %+v", services)
	}
}
