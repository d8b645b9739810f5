package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// runtime is everything a command needs once configuration is loaded.
type runtime struct {
	config *Config
	bot    *CodeBot
	gh     GitHubServices
	store  ActionStore
}

func (rt *runtime) Close() {
	if err := rt.store.Close(); err != nil {
		Warn("Failed to close store: %v", err)
	}
	GetLogger().Close()
}

func setupRuntime(ctx context.Context, envFiles []string) (*runtime, error) {
	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if _, err := InitLogger(config.LogLevel, config.LogFormat, config.LogDir); err != nil {
		return nil, err
	}

	client, err := NewGitHubClient(ctx, config)
	if err != nil {
		return nil, err
	}
	gh := ServicesFromClient(client)

	var store ActionStore = nopStore{}
	if config.IsStoreEnabled() {
		pg, err := OpenPostgresStore(ctx, config.DBConnectionString)
		if err != nil {
			return nil, err
		}
		store = pg
	}

	var notifier Notifier = nopNotifier{}
	if config.IsTelegramEnabled() {
		tg, err := NewTelegramNotifier(config.TelegramBotToken, config.TelegramChatID)
		if err != nil {
			Warn("Telegram notifications disabled: %v", err)
		} else {
			notifier = tg
		}
	}

	return &runtime{
		config: config,
		bot:    NewCodeBot(config, gh, WithStore(store), WithNotifier(notifier)),
		gh:     gh,
		store:  store,
	}, nil
}

// ParseTarget accepts "owner/repo#123" or an issue / pull request URL.
func ParseTarget(target string) (RepoRef, int, error) {
	target = strings.TrimSpace(target)

	if repoPart, numPart, ok := strings.Cut(target, "#"); ok {
		repo, err := ParseRepo(repoPart)
		if err != nil {
			return RepoRef{}, 0, err
		}
		number, err := strconv.Atoi(numPart)
		if err != nil || number <= 0 {
			return RepoRef{}, 0, fmt.Errorf("invalid number in %q", target)
		}
		return repo, number, nil
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return RepoRef{}, 0, fmt.Errorf("invalid target %q, expected owner/repo#number or a GitHub URL", target)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || (parts[2] != "issues" && parts[2] != "pull") {
		return RepoRef{}, 0, fmt.Errorf("invalid GitHub URL format")
	}
	number, err := strconv.Atoi(parts[3])
	if err != nil {
		return RepoRef{}, 0, fmt.Errorf("invalid issue number: %w", err)
	}
	return RepoRef{Owner: parts[0], Name: parts[1]}, number, nil
}

func NewRootCommand() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:           "codebot",
		Short:         "GitHub bot that reviews pull requests and opens branches for issues",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files to load before reading configuration (default .env)")

	withRuntime := func(run func(cmd *cobra.Command, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			rt, err := setupRuntime(cmd.Context(), envFiles)
			if err != nil {
				return err
			}
			defer rt.Close()
			return run(cmd, rt, args)
		}
	}

	root.AddCommand(
		newServeCommand(withRuntime),
		newCommentCommand(withRuntime),
		newBranchCommand(withRuntime),
		newReviewCommand(withRuntime),
		newFileCommand(withRuntime),
		newHistoryCommand(withRuntime),
	)
	return root
}

type runtimeRunner func(run func(cmd *cobra.Command, rt *runtime, args []string) error) func(*cobra.Command, []string) error

func newServeCommand(withRuntime runtimeRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, _ []string) error {
			server := NewWebhookServer(rt.config, rt.bot)
			return server.ListenAndServe(cmd.Context())
		}),
	}
}

func newCommentCommand(withRuntime runtimeRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <owner/repo#number|url> <body...>",
		Short: "Comment on an issue or pull request",
		Args:  cobra.MinimumNArgs(2),
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
			repo, number, err := ParseTarget(args[0])
			if err != nil {
				return err
			}
			issue := IssueContext{Repo: repo, Number: number}
			if err := rt.bot.CommentIssue(cmd.Context(), issue, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Comment posted on %s#%d\n", repo, number)
			return nil
		}),
	}
}

func newBranchCommand(withRuntime runtimeRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "branch <owner/repo#issue|url>",
		Short: "Create a branch for an issue and announce it",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
			repo, number, err := ParseTarget(args[0])
			if err != nil {
				return err
			}
			ghIssue, _, err := rt.gh.Issues.Get(cmd.Context(), repo.Owner, repo.Name, number)
			if err != nil {
				return fmt.Errorf("failed to get issue: %w", err)
			}
			details := rt.bot.CreateBranch(cmd.Context(), NewIssueContext(repo, ghIssue))
			if details == nil {
				return fmt.Errorf("branch was not created, see log for details")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Branch %s created at %s\n", details.Name, details.SHA)
			return nil
		}),
	}
}

func newReviewCommand(withRuntime runtimeRunner) *cobra.Command {
	review := &cobra.Command{
		Use:   "review",
		Short: "Pull request review commands",
	}

	var reviewFile string
	apply := &cobra.Command{
		Use:   "apply <owner/repo#pr|url>",
		Short: "Post a JSON review (general comment and inline suggestions)",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
			pr, err := loadPullRequest(cmd.Context(), rt, args[0])
			if err != nil {
				return err
			}
			r, err := LoadReviewFile(reviewFile)
			if err != nil {
				return err
			}
			result := rt.bot.ApplyReview(cmd.Context(), pr, r)
			fmt.Fprintf(cmd.OutOrStdout(), "Posted %d comment(s), %d failed\n", result.Posted, result.Failed)
			if result.Failed > 0 {
				return fmt.Errorf("%d comment(s) failed", result.Failed)
			}
			return nil
		}),
	}
	apply.Flags().StringVarP(&reviewFile, "file", "f", "", "review JSON file")
	apply.MarkFlagRequired("file")

	var post, showSources bool
	contextCmd := &cobra.Command{
		Use:   "context <owner/repo#pr|url>",
		Short: "Show the function calls a pull request changes and where they are imported from",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
			pr, err := loadPullRequest(cmd.Context(), rt, args[0])
			if err != nil {
				return err
			}
			if post {
				result := rt.bot.ReviewPullRequest(cmd.Context(), pr)
				fmt.Fprintf(cmd.OutOrStdout(), "Posted %d comment(s), %d failed\n", result.Posted, result.Failed)
				return nil
			}

			contexts, err := rt.bot.BuildPullRequestContext(cmd.Context(), pr)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ic := range contexts {
				fmt.Fprintf(out, "%s\n", ic.File)
				fmt.Fprintf(out, "  calls: %s\n", strings.Join(ic.FunctionCalls.Sorted(), ", "))
				for _, ext := range ic.External {
					fmt.Fprintf(out, "  %s <- %s\n", ext.Filepath, strings.Join(ext.Functions.Sorted(), ", "))
					if showSources && ext.Source != nil {
						fmt.Fprintf(out, "%s\n%s\n", ext.Source.FunctionString, ext.Source.Result)
					}
				}
			}
			return nil
		}),
	}
	contextCmd.Flags().BoolVar(&post, "post", false, "post the context summary as a review comment")
	contextCmd.Flags().BoolVar(&showSources, "sources", false, "print the resolved import sources with line numbers")

	review.AddCommand(apply, contextCmd)
	return review
}

func loadPullRequest(ctx context.Context, rt *runtime, target string) (PullRequestContext, error) {
	repo, number, err := ParseTarget(target)
	if err != nil {
		return PullRequestContext{}, err
	}
	ghPR, _, err := rt.gh.PullRequests.Get(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return PullRequestContext{}, fmt.Errorf("failed to get pull request: %w", err)
	}
	return NewPullRequestContext(repo, ghPR), nil
}

func newFileCommand(withRuntime runtimeRunner) *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "file <owner/repo> <path>",
		Short: "Print a repository file with line numbers",
		Args:  cobra.ExactArgs(2),
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
			repo, err := ParseRepo(args[0])
			if err != nil {
				return err
			}
			contents, err := rt.bot.GetFileContents(cmd.Context(), repo, BranchDetails{Name: ref}, args[1])
			if err != nil {
				return err
			}
			if contents == nil {
				return fmt.Errorf("no content found for %s", args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), contents.Result)
			return nil
		}),
	}
	cmd.Flags().StringVar(&ref, "ref", "", "branch, tag or commit (default branch when empty)")
	return cmd
}

func newHistoryCommand(withRuntime runtimeRunner) *cobra.Command {
	var repoFlag string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the bot's recorded GitHub actions",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, _ []string) error {
			if !rt.config.IsStoreEnabled() {
				return fmt.Errorf("history requires DB_CONNECTION_STRING")
			}
			actions, err := rt.store.RecentActions(cmd.Context(), repoFlag, limit)
			if err != nil {
				return err
			}
			printHistory(cmd, actions)
			return nil
		}),
	}
	cmd.Flags().StringVar(&repoFlag, "repo", "", "only show actions for owner/repo")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of actions to show")
	return cmd
}

func printHistory(cmd *cobra.Command, actions []Action) {
	out := cmd.OutOrStdout()
	if len(actions) == 0 {
		fmt.Fprintln(out, "No actions recorded.")
		return
	}

	fmt.Fprintf(out, "\n📜 ACTION HISTORY (last %d)\n", len(actions))
	fmt.Fprintln(out, strings.Repeat("=", 80))
	for i, a := range actions {
		status := "✅"
		if !a.Success {
			status = "❌"
		}
		fmt.Fprintf(out, "\n[%d] %s %s %s#%d\n", i+1, status, a.Kind, a.Repo, a.Number)
		fmt.Fprintf(out, "    At: %s\n", a.CreatedAt.Format("2006-01-02 15:04"))
		if a.Target != "" {
			fmt.Fprintf(out, "    Target: %s\n", a.Target)
		}
		if a.Body != "" {
			fmt.Fprintf(out, "    Preview: %s\n", truncateString(strings.ReplaceAll(a.Body, "\n", " "), 100))
		}
		if a.ErrorMessage != "" {
			fmt.Fprintf(out, "    Error: %s\n", a.ErrorMessage)
		}
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return truncateRunes(s, maxLen) + "..."
}
