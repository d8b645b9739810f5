package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/google/go-github/v58/github"
	"github.com/sourcegraph/conc/pool"
)

type CodeSuggestion struct {
	File       string `json:"file"`
	LineStart  int    `json:"line_start"`
	LineEnd    int    `json:"line_end"`
	Comment    string `json:"comment"`
	Correction string `json:"correction"`
}

type ReviewSummary struct {
	Comment *string `json:"comment"`
}

type Review struct {
	Review      *ReviewSummary   `json:"review"`
	Suggestions []CodeSuggestion `json:"suggestions"`
}

// GeneralComment returns the top-level review text, or nil when there is none.
func (r *Review) GeneralComment() *string {
	if r == nil || r.Review == nil {
		return nil
	}
	return r.Review.Comment
}

func LoadReviewFile(path string) (*Review, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read review file: %w", err)
	}
	var review Review
	if err := json.Unmarshal(data, &review); err != nil {
		return nil, fmt.Errorf("failed to parse review file %s: %w", path, err)
	}
	return &review, nil
}

type ReviewResult struct {
	Posted int
	Failed int
}

func suggestionBody(s CodeSuggestion) string {
	return fmt.Sprintf("%s\n```suggestion\n%s\n```", s.Comment, strings.TrimSuffix(s.Correction, "\n"))
}

func (b *CodeBot) postGeneralReviewComment(ctx context.Context, pr PullRequestContext, review string) error {
	_, _, err := b.gh.Issues.CreateComment(ctx, pr.Repo.Owner, pr.Repo.Name, pr.Number, &github.IssueComment{
		Body: github.String(review),
	})
	b.record(ctx, newAction(ActionGeneralComment, pr.Repo, pr.Number, "", review, err))
	if err != nil {
		return fmt.Errorf("failed to post review comment on %s#%d: %w", pr.Repo, pr.Number, err)
	}
	return nil
}

func (b *CodeBot) postInlineComment(ctx context.Context, pr PullRequestContext, suggestion CodeSuggestion) error {
	body := suggestionBody(suggestion)
	comment := &github.PullRequestComment{
		Body:     github.String(body),
		CommitID: github.String(pr.HeadSHA),
		Path:     github.String(suggestion.File),
		Line:     github.Int(suggestion.LineEnd),
		Side:     github.String("RIGHT"),
	}
	if suggestion.LineStart != suggestion.LineEnd {
		comment.StartLine = github.Int(suggestion.LineStart)
		comment.StartSide = github.String("RIGHT")
	}

	_, _, err := b.gh.PullRequests.CreateComment(ctx, pr.Repo.Owner, pr.Repo.Name, pr.Number, comment)
	target := fmt.Sprintf("%s:%d-%d", suggestion.File, suggestion.LineStart, suggestion.LineEnd)
	b.record(ctx, newAction(ActionInlineComment, pr.Repo, pr.Number, target, body, err))
	if err != nil {
		return fmt.Errorf("failed to post inline comment on %s: %w", target, err)
	}
	return nil
}

// ApplyReview posts the general comment and every inline suggestion of review
// concurrently and waits for all of them. Failures are logged, never returned.
func (b *CodeBot) ApplyReview(ctx context.Context, pr PullRequestContext, review *Review) ReviewResult {
	var posted, failed atomic.Int64
	log := WithFields(map[string]interface{}{"repo": pr.Repo.String(), "pr": pr.Number})

	if review == nil {
		return ReviewResult{}
	}

	p := pool.New().WithMaxGoroutines(b.maxParallel())
	if comment := review.GeneralComment(); comment != nil {
		text := *comment
		p.Go(func() {
			if err := b.postGeneralReviewComment(ctx, pr, text); err != nil {
				log.Error("%v", err)
				failed.Add(1)
				return
			}
			posted.Add(1)
		})
	}
	for _, suggestion := range review.Suggestions {
		suggestion := suggestion
		p.Go(func() {
			if err := b.postInlineComment(ctx, pr, suggestion); err != nil {
				log.Error("%v", err)
				failed.Add(1)
				return
			}
			posted.Add(1)
		})
	}
	p.Wait()

	result := ReviewResult{Posted: int(posted.Load()), Failed: int(failed.Load())}
	log.Info("Review applied: %d posted, %d failed", result.Posted, result.Failed)
	if result.Posted > 0 {
		b.notify(ctx, fmt.Sprintf("Review posted on %s#%d (%d comments)", pr.Repo, pr.Number, result.Posted))
	}
	return result
}
