package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/go-github/v58/github"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrNotAFile     = errors.New("path is not a file")
)

type GitFile struct {
	Content string
	SHA     string
}

type FileContents struct {
	Result         string
	FunctionString string
}

// processGitFilepath turns an import-ish path into a repository path.
func processGitFilepath(filepath string) string {
	p := strings.TrimSpace(filepath)
	p = strings.Trim(p, `"'`+"`")
	for strings.HasPrefix(p, "./") || strings.HasPrefix(p, "/") {
		p = strings.TrimPrefix(strings.TrimPrefix(p, "./"), "/")
	}
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}

func addLineNumbers(contents string) string {
	lines := strings.Split(contents, "\n")
	for i, line := range lines {
		lines[i] = fmt.Sprintf("%d: %s", i+1, line)
	}
	return strings.Join(lines, "\n")
}

// GetGitFile fetches filepath at branch.Name. A 404 yields ErrFileNotFound.
func (b *CodeBot) GetGitFile(ctx context.Context, repo RepoRef, branch BranchDetails, filepath string) (*GitFile, error) {
	content, _, resp, err := b.gh.Repositories.GetContents(ctx, repo.Owner, repo.Name, filepath, &github.RepositoryContentGetOptions{
		Ref: branch.Name,
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s@%s: %w", filepath, branch.Name, ErrFileNotFound)
		}
		Error("Failed to get %s@%s from %s: %v", filepath, branch.Name, repo, err)
		return nil, fmt.Errorf("failed to get file content: %w", err)
	}

	if content == nil {
		return nil, fmt.Errorf("%s@%s: %w", filepath, branch.Name, ErrNotAFile)
	}

	decoded, err := content.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", filepath, err)
	}

	return &GitFile{Content: decoded, SHA: content.GetSHA()}, nil
}

// GetFileContents returns the file with numbered lines, or nil when the file
// does not exist or is empty.
func (b *CodeBot) GetFileContents(ctx context.Context, repo RepoRef, branch BranchDetails, filepath string) (*FileContents, error) {
	gitFile, err := b.GetGitFile(ctx, repo, branch, processGitFilepath(filepath))
	if err != nil {
		if errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrNotAFile) {
			return nil, nil
		}
		return nil, err
	}

	if gitFile.Content == "" {
		return nil, nil
	}

	return fileContentsOf(filepath, gitFile.Content), nil
}

func fileContentsOf(filepath, content string) *FileContents {
	return &FileContents{
		Result:         fmt.Sprintf("# %s\n%s", filepath, addLineNumbers(content)),
		FunctionString: fmt.Sprintf("Opening file: %s", filepath),
	}
}
