package main

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/go-github/v58/github"
)

var (
	whitespacePattern = regexp.MustCompile(`\s`)
	// Bytes git refuses in ref names (see git-check-ref-format). "/" is
	// included so the title cannot add path components.
	invalidRefChars = regexp.MustCompile(`[~^:?*\[\\/\x00-\x1f\x7f]`)
)

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// branchName builds "<prefix>/<title>-<hash>" where the part after the prefix
// holds at most 20 characters and the title part at most 15.
func branchName(prefix, title, hash string) string {
	slug := whitespacePattern.ReplaceAllString(title, "-")
	slug = invalidRefChars.ReplaceAllString(slug, "-")
	for strings.Contains(slug, "..") || strings.Contains(slug, "@{") {
		slug = strings.NewReplacer("..", "-", "@{", "-").Replace(slug)
	}
	slug = truncateRunes(slug, 15)

	sub := truncateRunes(fmt.Sprintf("%s-%s", slug, hash), 20)
	for trimmed := ""; trimmed != sub; {
		trimmed = sub
		sub = strings.Trim(strings.TrimSuffix(sub, ".lock"), ".")
	}
	return fmt.Sprintf("%s/%s", prefix, sub)
}

func (b *CodeBot) CommentIssue(ctx context.Context, issue IssueContext, comment string) error {
	_, _, err := b.gh.Issues.CreateComment(ctx, issue.Repo.Owner, issue.Repo.Name, issue.Number, &github.IssueComment{
		Body: github.String(comment),
	})
	b.record(ctx, newAction(ActionIssueComment, issue.Repo, issue.Number, "", comment, err))
	if err != nil {
		return fmt.Errorf("failed to comment on %s#%d: %w", issue.Repo, issue.Number, err)
	}
	return nil
}

func (b *CodeBot) branchURL(repo RepoRef, name string) string {
	return fmt.Sprintf("%s/%s/%s/tree/%s", b.webURL(), repo.Owner, repo.Name, name)
}

// CreateBranch creates a branch for issue off the repository's default branch
// and announces it on the issue. It returns nil if the branch could not be
// created; a failed announcement is only logged.
func (b *CodeBot) CreateBranch(ctx context.Context, issue IssueContext) *BranchDetails {
	log := WithFields(map[string]interface{}{"repo": issue.Repo.String(), "issue": issue.Number})
	name := branchName(b.branchPrefix(), issue.Title, b.randSuffix())

	repo, _, err := b.gh.Repositories.Get(ctx, issue.Repo.Owner, issue.Repo.Name)
	if err != nil {
		log.Error("Failed to get repository: %v", err)
		return nil
	}

	ref, _, err := b.gh.Git.GetRef(ctx, issue.Repo.Owner, issue.Repo.Name, "heads/"+repo.GetDefaultBranch())
	if err != nil {
		log.Error("Failed to get ref for default branch %s: %v", repo.GetDefaultBranch(), err)
		return nil
	}

	newBranch, _, err := b.gh.Git.CreateRef(ctx, issue.Repo.Owner, issue.Repo.Name, &github.Reference{
		Ref: github.String("refs/heads/" + name),
		Object: &github.GitObject{
			SHA: github.String(ref.GetObject().GetSHA()),
		},
	})
	b.record(ctx, newAction(ActionBranch, issue.Repo, issue.Number, name, ref.GetObject().GetSHA(), err))
	if err != nil {
		log.Error("Failed to create branch %s: %v", name, err)
		return nil
	}

	details := &BranchDetails{
		Name: name,
		SHA:  newBranch.GetObject().GetSHA(),
		URL:  newBranch.GetURL(),
	}
	log.Debug("Created ref %s at %s", newBranch.GetRef(), details.SHA)

	branchURL := b.branchURL(issue.Repo, name)
	if err := b.CommentIssue(ctx, issue, fmt.Sprintf("Branch created: [%s](%s)", name, branchURL)); err != nil {
		log.Error("%v", err)
	}

	log.Info("Branch %s created", name)
	b.notify(ctx, fmt.Sprintf("Branch %s created for %s#%d: %s", name, issue.Repo, issue.Number, branchURL))
	return details
}
