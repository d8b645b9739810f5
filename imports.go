package main

import (
	"context"
	"errors"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"
)

var (
	importStartPattern  = regexp.MustCompile(`^import(?:\s|\{|\*|'|"|$)`)
	importFromPattern   = regexp.MustCompile(`^import\s+(?:type\s+)?([\s\S]+?)\s+from\s+['"]([^'"]+)['"]`)
	importBarePattern   = regexp.MustCompile(`^import\s+['"]([^'"]+)['"]`)
	namespacePattern    = regexp.MustCompile(`^\*\s*as\s+(\w+)$`)
	identifierPattern   = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
	exportDefaultRegexp = regexp.MustCompile(`(?m)^\s*export\s+default\b|\bas\s+default\b`)
	exportAllRegexp     = regexp.MustCompile(`(?m)^\s*export\s*\*`)
	exportListRegexp    = regexp.MustCompile(`export\s*(?:type\s*)?\{([^}]*)\}`)
)

var moduleExtensions = map[string]bool{
	".ts":  true,
	".tsx": true,
	".js":  true,
	".jsx": true,
	".mjs": true,
	".cjs": true,
}

// ImportStatement is one parsed ES module import.
type ImportStatement struct {
	Raw       string
	Path      string
	Default   string
	Namespace string
	// Named maps the local binding to the name exported by the module.
	Named map[string]string
}

func (s ImportStatement) HasBindings() bool {
	return s.Default != "" || s.Namespace != "" || len(s.Named) > 0
}

// IsRepoLocal reports whether the import points inside the repository.
func (s ImportStatement) IsRepoLocal() bool {
	return strings.HasPrefix(s.Path, ".") || strings.HasPrefix(s.Path, "/")
}

type ImportedFunctions struct {
	Import        string
	Filepath      string
	Filename      string
	Found         bool
	InPullRequest bool
	Functions     StringSet
	Source        *FileContents
}

type ImportContext struct {
	File          string
	FunctionCalls StringSet
	ChangedLines  []int
	External      []ImportedFunctions
}

// importStatements returns the import statements of contents, joining
// statements that span several lines.
func importStatements(contents string) []string {
	var statements []string
	var pending []string

	for _, line := range strings.Split(contents, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(pending) == 0 {
			if !importStartPattern.MatchString(trimmed) {
				continue
			}
		}
		pending = append(pending, trimmed)
		joined := strings.Join(pending, " ")
		if importComplete(joined) || len(pending) > 50 {
			statements = append(statements, joined)
			pending = nil
		}
	}
	if len(pending) > 0 {
		statements = append(statements, strings.Join(pending, " "))
	}
	return statements
}

func importComplete(statement string) bool {
	if strings.HasSuffix(statement, ";") {
		return true
	}
	return importFromPattern.MatchString(statement) || importBarePattern.MatchString(statement)
}

func parseImportStatement(statement string) (ImportStatement, bool) {
	statement = strings.TrimSpace(statement)
	stmt := ImportStatement{Raw: statement, Named: map[string]string{}}

	if m := importBarePattern.FindStringSubmatch(statement); m != nil {
		stmt.Path = m[1]
		return stmt, true
	}

	m := importFromPattern.FindStringSubmatch(statement)
	if m == nil {
		return ImportStatement{}, false
	}
	stmt.Path = m[2]
	clause := strings.TrimSpace(m[1])

	if open := strings.Index(clause, "{"); open >= 0 {
		end := strings.LastIndex(clause, "}")
		if end < open {
			return ImportStatement{}, false
		}
		for _, entry := range strings.Split(clause[open+1:end], ",") {
			entry = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(entry), "type "))
			if entry == "" {
				continue
			}
			exported, local := entry, entry
			if parts := strings.Fields(entry); len(parts) == 3 && parts[1] == "as" {
				exported, local = parts[0], parts[2]
			}
			if identifierPattern.MatchString(local) {
				stmt.Named[local] = exported
			}
		}
		clause = clause[:open] + clause[end+1:]
	}

	for _, part := range strings.Split(clause, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case namespacePattern.MatchString(part):
			stmt.Namespace = namespacePattern.FindStringSubmatch(part)[1]
		case identifierPattern.MatchString(part):
			stmt.Default = part
		}
	}

	return stmt, true
}

// resolveImportCandidates lists the repository paths an import from fromFile
// may refer to, most specific first.
func resolveImportCandidates(fromFile, importPath string) []string {
	var base string
	if strings.HasPrefix(importPath, "/") {
		base = processGitFilepath(importPath)
	} else {
		base = processGitFilepath(path.Join(path.Dir(fromFile), importPath))
	}
	if base == "" || base == ".." || strings.HasPrefix(base, "../") {
		return nil
	}

	ext := path.Ext(base)
	if moduleExtensions[ext] {
		candidates := []string{base}
		if ext == ".js" || ext == ".jsx" {
			stem := strings.TrimSuffix(base, ext)
			candidates = append(candidates, stem+".ts", stem+".tsx")
		}
		return candidates
	}

	return []string{
		base + ".ts",
		base + ".tsx",
		base + ".js",
		base + ".jsx",
		base + "/index.ts",
		base + "/index.js",
	}
}

// boundCalls maps each call that goes through stmt's bindings to the name the
// imported module has to export for it.
func boundCalls(stmt ImportStatement, functionCalls StringSet) map[string]string {
	bound := make(map[string]string)
	for call := range functionCalls {
		recv, member, isMethod := strings.Cut(call, ".")
		if isMethod {
			switch {
			case stmt.Namespace != "" && recv == stmt.Namespace:
				bound[call] = member
			case stmt.Default != "" && recv == stmt.Default:
				bound[call] = "default"
			default:
				if exported, ok := stmt.Named[recv]; ok {
					bound[call] = exported
				}
			}
			continue
		}
		if exported, ok := stmt.Named[call]; ok {
			bound[call] = exported
		} else if stmt.Default != "" && call == stmt.Default {
			bound[call] = "default"
		}
	}
	return bound
}

// exportsName reports whether source appears to export name.
func exportsName(source, name string) bool {
	// "export *" re-exports everything but the default export.
	if name == "default" {
		return exportDefaultRegexp.MatchString(source) || strings.Contains(source, "module.exports")
	}
	if exportAllRegexp.MatchString(source) {
		return true
	}

	quoted := regexp.QuoteMeta(name)
	declaration := regexp.MustCompile(`(?m)^\s*export\s+(?:declare\s+)?(?:async\s+)?(?:function\s*\*?|const|let|var|class|abstract\s+class|enum|type|interface)\s+` + quoted + `\b`)
	if declaration.MatchString(source) {
		return true
	}
	if regexp.MustCompile(`\bexports\.` + quoted + `\s*=`).MatchString(source) {
		return true
	}

	for _, m := range exportListRegexp.FindAllStringSubmatch(source, -1) {
		for _, entry := range strings.Split(m[1], ",") {
			parts := strings.Fields(strings.TrimPrefix(strings.TrimSpace(entry), "type "))
			switch {
			case len(parts) == 1 && parts[0] == name:
				return true
			case len(parts) == 3 && parts[1] == "as" && parts[2] == name:
				return true
			}
		}
	}
	return false
}

// FindExternalFunctionFromRepo resolves one import of fromFile against the
// pull request's base branch and reports which of functionCalls it provides.
func (b *CodeBot) FindExternalFunctionFromRepo(ctx context.Context, pr PullRequestContext, fromFile string, stmt ImportStatement, filenames, functionCalls StringSet) ImportedFunctions {
	result := ImportedFunctions{
		Import:    stmt.Path,
		Functions: NewStringSet(),
	}
	log := WithFields(map[string]interface{}{"repo": pr.Repo.String(), "pr": pr.Number, "file": fromFile})

	candidates := resolveImportCandidates(fromFile, stmt.Path)
	if len(candidates) == 0 {
		return result
	}
	result.Filepath = candidates[0]
	result.Filename = path.Base(candidates[0])

	bound := boundCalls(stmt, functionCalls)
	if len(bound) == 0 {
		return result
	}

	for _, candidate := range candidates {
		gitFile, err := b.GetGitFile(ctx, pr.Repo, pr.BaseBranch(), candidate)
		if err != nil {
			if errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrNotAFile) {
				continue
			}
			log.Warn("Error fetching file %s: %v", candidate, err)
			return result
		}

		result.Filepath = candidate
		result.Filename = path.Base(candidate)
		result.Found = true
		result.InPullRequest = filenames.Has(candidate)
		result.Source = fileContentsOf(candidate, gitFile.Content)
		for call, exported := range bound {
			if exportsName(gitFile.Content, exported) {
				result.Functions.Add(call)
			}
		}
		return result
	}

	log.Debug("No content found for import %q (tried %s)", stmt.Path, strings.Join(candidates, ", "))
	return result
}

// ApplyImportContext infers the function calls changed by file's patch and
// resolves the repository-local imports they go through.
func (b *CodeBot) ApplyImportContext(ctx context.Context, pr PullRequestContext, file PRFile, filenames StringSet) ImportContext {
	importCtx := ImportContext{
		File:          file.Filename,
		FunctionCalls: NewStringSet(),
	}

	hunks, err := ParsePatch(file.Patch)
	if err != nil {
		WithField("file", file.Filename).Warn("Failed to parse patch: %v", err)
	}
	for _, hunk := range hunks {
		parseFunctions(hunkLines(hunk), importCtx.FunctionCalls)
		importCtx.ChangedLines = append(importCtx.ChangedLines, changedLineNumbers(hunk)...)
	}
	if len(importCtx.FunctionCalls) == 0 {
		return importCtx
	}

	source := file.OldContents
	if source == "" {
		source = file.Contents
	}

	p := pool.NewWithResults[ImportedFunctions]().WithMaxGoroutines(b.maxParallel())
	for _, raw := range importStatements(source) {
		stmt, ok := parseImportStatement(raw)
		if !ok || !stmt.IsRepoLocal() || !stmt.HasBindings() {
			continue
		}
		p.Go(func() ImportedFunctions {
			return b.FindExternalFunctionFromRepo(ctx, pr, file.Filename, stmt, filenames, importCtx.FunctionCalls)
		})
	}

	for _, imported := range p.Wait() {
		if len(imported.Functions) > 0 {
			importCtx.External = append(importCtx.External, imported)
		}
	}
	sort.Slice(importCtx.External, func(i, j int) bool {
		return importCtx.External[i].Filepath < importCtx.External[j].Filepath
	})

	return importCtx
}
