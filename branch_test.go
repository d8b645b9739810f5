package main

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestBranchName(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"short title", "Fix bug", "Code-Bot/Fix-bug-k3x9q"},
		{"title cut at 15", "Add support for webhooks", "Code-Bot/Add-support-for-k3x9"},
		{"tabs and newlines", "a\tb\nc", "Code-Bot/a-b-c-k3x9q"},
		{"ref-illegal characters", "Crash: a~b^c?", "Code-Bot/Crash--a-b-c--k3x9q"},
		{"double dots", "v1..v2", "Code-Bot/v1-v2-k3x9q"},
		{"unicode", "Añadir día", "Code-Bot/Añadir-día-k3x9q"},
		{"empty", "", "Code-Bot/-k3x9q"},
		{"leading slash", "/etc broken", "Code-Bot/-etc-broken-k3x9q"},
		{"dot after slash", "src/.env leak", "Code-Bot/src-.env-leak-k3x9q"},
		{"trailing slash", "fix a/", "Code-Bot/fix-a--k3x9q"},
		{"double slash", "a//b", "Code-Bot/a--b-k3x9q"},
		{"leading dot", ".hidden", "Code-Bot/hidden-k3x9q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := branchName("Code-Bot", tt.title, "k3x9q"); got != tt.want {
				t.Errorf("branchName(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestBranchName_SubNameLimit(t *testing.T) {
	got := branchName("Code-Bot", strings.Repeat("x", 40), "abcde")
	sub := strings.TrimPrefix(got, "Code-Bot/")
	if len([]rune(sub)) > 20 {
		t.Errorf("sub name %q longer than 20 characters", sub)
	}
}

func TestBranchName_SingleComponent(t *testing.T) {
	for _, title := range []string{"/etc broken", "src/.env leak", "fix a/", "../../x", "a/b/c/d"} {
		got := branchName("Code-Bot", title, "k3x9q")
		sub := strings.TrimPrefix(got, "Code-Bot/")
		if strings.Contains(sub, "/") || strings.HasPrefix(sub, ".") || strings.Contains(sub, "..") {
			t.Errorf("branchName(%q) = %q is not a single valid ref component", title, got)
		}
	}
}

func TestCreateBranch(t *testing.T) {
	env := newTestEnv()
	env.repos.defaultBranch = "develop"
	issue := IssueContext{Repo: testRepo, Number: 12, Title: "Fix login"}

	details := env.bot.CreateBranch(context.Background(), issue)

	if details == nil {
		t.Fatal("CreateBranch() returned nil")
	}
	if details.Name != "Code-Bot/Fix-login-k3x9q" {
		t.Errorf("Name = %q", details.Name)
	}
	if details.SHA != "abc123" {
		t.Errorf("SHA = %q, want abc123", details.SHA)
	}
	if details.URL == "" {
		t.Error("URL should be set from the created ref")
	}
	if env.git.gotRef != "heads/develop" {
		t.Errorf("GetRef(%q), want heads/develop", env.git.gotRef)
	}
	if got := env.git.created.GetRef(); got != "refs/heads/Code-Bot/Fix-login-k3x9q" {
		t.Errorf("CreateRef ref = %q", got)
	}
	if got := env.git.created.GetObject().GetSHA(); got != "abc123" {
		t.Errorf("CreateRef sha = %q", got)
	}

	if len(env.issues.comments) != 1 {
		t.Fatalf("expected 1 announcement comment, got %d", len(env.issues.comments))
	}
	wantComment := "Branch created: [Code-Bot/Fix-login-k3x9q](https://github.com/acme/widgets/tree/Code-Bot/Fix-login-k3x9q)"
	if got := env.issues.comments[0].GetBody(); got != wantComment {
		t.Errorf("comment = %q, want %q", got, wantComment)
	}
	if env.issues.numbers[0] != 12 {
		t.Errorf("commented on #%d, want #12", env.issues.numbers[0])
	}

	kinds := env.store.kinds()
	if kinds[ActionBranch] != 1 || kinds[ActionIssueComment] != 1 {
		t.Errorf("recorded actions = %v", kinds)
	}
	if len(env.notifier.messages) != 1 {
		t.Fatalf("expected a notification, got %d", len(env.notifier.messages))
	}
	wantNote := "Branch Code-Bot/Fix-login-k3x9q created for acme/widgets#12: https://github.com/acme/widgets/tree/Code-Bot/Fix-login-k3x9q"
	if got := env.notifier.messages[0]; got != wantNote {
		t.Errorf("notification = %q, want %q", got, wantNote)
	}
}

func TestCreateBranch_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(env *testEnv)
	}{
		{"repository lookup fails", func(env *testEnv) { env.repos.getErr = errors.New("boom") }},
		{"default ref lookup fails", func(env *testEnv) { env.git.getErr = errors.New("boom") }},
		{"ref creation fails", func(env *testEnv) { env.git.createErr = errors.New("422 Reference already exists") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			tt.setup(env)

			if details := env.bot.CreateBranch(context.Background(), IssueContext{Repo: testRepo, Number: 1, Title: "x"}); details != nil {
				t.Errorf("CreateBranch() = %+v, want nil", details)
			}
			if len(env.issues.comments) != 0 {
				t.Error("no announcement expected on failure")
			}
		})
	}
}

func TestCreateBranch_AnnouncementFailureKeepsBranch(t *testing.T) {
	env := newTestEnv()
	env.issues.createErr = errors.New("403 Forbidden")

	details := env.bot.CreateBranch(context.Background(), IssueContext{Repo: testRepo, Number: 3, Title: "Docs"})
	if details == nil {
		t.Fatal("branch details should be returned even if the comment fails")
	}
}

func TestCreateBranch_EnterpriseWebURL(t *testing.T) {
	env := newTestEnv()
	env.bot.config.GitHubWebURL = "https://git.example.com/"

	env.bot.CreateBranch(context.Background(), IssueContext{Repo: testRepo, Number: 4, Title: "Go"})

	if len(env.issues.comments) != 1 {
		t.Fatal("expected an announcement")
	}
	if got := env.issues.comments[0].GetBody(); !strings.Contains(got, "(https://git.example.com/acme/widgets/tree/Code-Bot/Go-k3x9q)") {
		t.Errorf("comment = %q", got)
	}
}

func TestCommentIssue(t *testing.T) {
	env := newTestEnv()
	if err := env.bot.CommentIssue(context.Background(), IssueContext{Repo: testRepo, Number: 9}, "hi"); err != nil {
		t.Fatalf("CommentIssue() error = %v", err)
	}
	if env.issues.comments[0].GetBody() != "hi" || env.issues.numbers[0] != 9 {
		t.Errorf("comment = %q on #%d", env.issues.comments[0].GetBody(), env.issues.numbers[0])
	}

	env.issues.createErr = errors.New("boom")
	if err := env.bot.CommentIssue(context.Background(), IssueContext{Repo: testRepo, Number: 9}, "hi"); err == nil {
		t.Error("expected error")
	}
}
