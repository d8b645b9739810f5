package main

import (
	"context"
	"fmt"

	"github.com/google/go-github/v58/github"
	"golang.org/x/oauth2"
)

// The bot talks to GitHub only through these method sets so tests can swap
// in fakes for the go-github services.

type issuesService interface {
	CreateComment(ctx context.Context, owner, repo string, number int, comment *github.IssueComment) (*github.IssueComment, *github.Response, error)
	Get(ctx context.Context, owner, repo string, number int) (*github.Issue, *github.Response, error)
}

type pullRequestsService interface {
	CreateComment(ctx context.Context, owner, repo string, number int, comment *github.PullRequestComment) (*github.PullRequestComment, *github.Response, error)
	ListFiles(ctx context.Context, owner, repo string, number int, opts *github.ListOptions) ([]*github.CommitFile, *github.Response, error)
	Get(ctx context.Context, owner, repo string, number int) (*github.PullRequest, *github.Response, error)
}

type repositoriesService interface {
	Get(ctx context.Context, owner, repo string) (*github.Repository, *github.Response, error)
	GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error)
}

type gitService interface {
	GetRef(ctx context.Context, owner, repo, ref string) (*github.Reference, *github.Response, error)
	CreateRef(ctx context.Context, owner, repo string, ref *github.Reference) (*github.Reference, *github.Response, error)
}

// GitHubServices groups the go-github services the bot depends on.
type GitHubServices struct {
	Issues       issuesService
	PullRequests pullRequestsService
	Repositories repositoriesService
	Git          gitService
}

func NewGitHubClient(ctx context.Context, config *Config) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: config.GitHubToken},
	)
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	if config.GitHubAPIURL != "" {
		enterprise, err := client.WithEnterpriseURLs(config.GitHubAPIURL, config.GitHubAPIURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure enterprise URL: %w", err)
		}
		client = enterprise
	}

	return client, nil
}

func ServicesFromClient(client *github.Client) GitHubServices {
	return GitHubServices{
		Issues:       client.Issues,
		PullRequests: client.PullRequests,
		Repositories: client.Repositories,
		Git:          client.Git,
	}
}
