package main

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v58/github"
)

type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepo parses "owner/name".
func ParseRepo(s string) (RepoRef, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(s), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, fmt.Errorf("invalid repository %q, expected owner/name", s)
	}
	return RepoRef{Owner: parts[0], Name: parts[1]}, nil
}

func repoFromGitHub(repo *github.Repository) RepoRef {
	return RepoRef{
		Owner: repo.GetOwner().GetLogin(),
		Name:  repo.GetName(),
	}
}

type PullRequestContext struct {
	Repo    RepoRef
	Number  int
	Title   string
	HeadSHA string
	BaseRef string
	BaseSHA string
	URL     string
}

// BaseBranch is the branch imports are resolved against.
func (pr PullRequestContext) BaseBranch() BranchDetails {
	return BranchDetails{
		Name: pr.BaseRef,
		SHA:  pr.BaseSHA,
		URL:  pr.URL,
	}
}

func NewPullRequestContext(repo RepoRef, pr *github.PullRequest) PullRequestContext {
	return PullRequestContext{
		Repo:    repo,
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		HeadSHA: pr.GetHead().GetSHA(),
		BaseRef: pr.GetBase().GetRef(),
		BaseSHA: pr.GetBase().GetSHA(),
		URL:     pr.GetURL(),
	}
}

func PullRequestContextFromEvent(event *github.PullRequestEvent) PullRequestContext {
	return NewPullRequestContext(repoFromGitHub(event.GetRepo()), event.GetPullRequest())
}

type IssueContext struct {
	Repo   RepoRef
	Number int
	Title  string
}

func NewIssueContext(repo RepoRef, issue *github.Issue) IssueContext {
	return IssueContext{
		Repo:   repo,
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
	}
}

func IssueContextFromEvent(event *github.IssuesEvent) IssueContext {
	return NewIssueContext(repoFromGitHub(event.GetRepo()), event.GetIssue())
}

type BranchDetails struct {
	Name string `json:"name"`
	SHA  string `json:"sha"`
	URL  string `json:"url"`
}
