package main

import (
	"context"
	"fmt"
	"strings"
)

// Reviewer turns the import context of a pull request into a review.
type Reviewer interface {
	Review(ctx context.Context, pr PullRequestContext, contexts []ImportContext) (*Review, error)
}

// ContextReviewer summarises which repository files the changed function calls
// come from. It never proposes suggestions.
type ContextReviewer struct{}

func (ContextReviewer) Review(_ context.Context, pr PullRequestContext, contexts []ImportContext) (*Review, error) {
	var sb strings.Builder
	files := 0

	for _, ic := range contexts {
		if len(ic.FunctionCalls) == 0 {
			continue
		}
		files++

		fmt.Fprintf(&sb, "#### `%s`\n", ic.File)
		if ranges := lineRanges(ic.ChangedLines); len(ranges) > 0 {
			fmt.Fprintf(&sb, "Changed lines: %s\n", strings.Join(ranges, ", "))
		}
		fmt.Fprintf(&sb, "Calls touched: %s\n", codeList(ic.FunctionCalls.Sorted()))

		for _, ext := range ic.External {
			note := ""
			if ext.InPullRequest {
				note = " (also changed in this pull request)"
			}
			fmt.Fprintf(&sb, "- %s from `%s`%s\n", codeList(ext.Functions.Sorted()), ext.Filepath, note)
		}
		sb.WriteString("\n")
	}

	if files == 0 {
		return nil, nil
	}

	body := fmt.Sprintf("### Code-Bot context for #%d\n\n%d changed file(s) touch function calls.\n\n%s", pr.Number, files, strings.TrimRight(sb.String(), "\n"))
	return &Review{Review: &ReviewSummary{Comment: &body}}, nil
}

func codeList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "`" + item + "`"
	}
	return strings.Join(quoted, ", ")
}

// ReviewPullRequest builds the import context of pr, asks the reviewer for a
// review and posts it.
func (b *CodeBot) ReviewPullRequest(ctx context.Context, pr PullRequestContext) ReviewResult {
	log := WithFields(map[string]interface{}{"repo": pr.Repo.String(), "pr": pr.Number})

	contexts, err := b.BuildPullRequestContext(ctx, pr)
	if err != nil {
		log.Error("Failed to build pull request context: %v", err)
		return ReviewResult{}
	}

	review, err := b.reviewer.Review(ctx, pr, contexts)
	if err != nil {
		log.Error("Reviewer failed: %v", err)
		return ReviewResult{}
	}
	if review == nil {
		log.Info("Nothing to review")
		return ReviewResult{}
	}

	return b.ApplyReview(ctx, pr, review)
}
