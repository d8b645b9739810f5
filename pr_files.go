package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-github/v58/github"
)

type PRFile struct {
	Filename    string
	Status      string
	Patch       string
	OldContents string
	Contents    string
}

// CollectPRFiles lists the files changed by pr. Old contents are read from the
// base branch, removed files included; files added by the pull request get
// their head contents instead.
func (b *CodeBot) CollectPRFiles(ctx context.Context, pr PullRequestContext) ([]PRFile, error) {
	var commitFiles []*github.CommitFile
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := b.gh.PullRequests.ListFiles(ctx, pr.Repo.Owner, pr.Repo.Name, pr.Number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list PR files: %w", err)
		}
		commitFiles = append(commitFiles, page...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	log := WithFields(map[string]interface{}{"repo": pr.Repo.String(), "pr": pr.Number})
	log.Debug("Retrieved %d files from PR", len(commitFiles))

	files := make([]PRFile, 0, len(commitFiles))
	for _, cf := range commitFiles {
		file := PRFile{
			Filename: cf.GetFilename(),
			Status:   cf.GetStatus(),
			Patch:    cf.GetPatch(),
		}

		switch file.Status {
		case "added":
			head, err := b.GetGitFile(ctx, pr.Repo, BranchDetails{Name: pr.HeadSHA}, file.Filename)
			if err != nil {
				log.Warn("Could not get contents of new file %s: %v", file.Filename, err)
				break
			}
			file.Contents = head.Content
		default:
			oldPath := file.Filename
			if file.Status == "renamed" && cf.GetPreviousFilename() != "" {
				oldPath = cf.GetPreviousFilename()
			}
			old, err := b.GetGitFile(ctx, pr.Repo, pr.BaseBranch(), oldPath)
			if err != nil {
				if !errors.Is(err, ErrFileNotFound) {
					log.Warn("Could not get previous contents of %s: %v", oldPath, err)
				}
				break
			}
			file.OldContents = old.Content
		}

		files = append(files, file)
	}

	return files, nil
}

// BuildPullRequestContext gathers the import context of every changed file.
func (b *CodeBot) BuildPullRequestContext(ctx context.Context, pr PullRequestContext) ([]ImportContext, error) {
	files, err := b.CollectPRFiles(ctx, pr)
	if err != nil {
		return nil, err
	}

	filenames := NewStringSet()
	for _, f := range files {
		filenames.Add(f.Filename)
	}

	contexts := make([]ImportContext, 0, len(files))
	for _, f := range files {
		contexts = append(contexts, b.ApplyImportContext(ctx, pr, f, filenames))
	}
	return contexts, nil
}
