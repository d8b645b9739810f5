package main

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// CodeBot carries out the bot's GitHub writes and reads.
type CodeBot struct {
	gh       GitHubServices
	config   *Config
	store    ActionStore
	notifier Notifier
	reviewer Reviewer

	// randSuffix returns the short random hash used in branch names.
	randSuffix func() string
}

type Option func(*CodeBot)

func WithStore(store ActionStore) Option {
	return func(b *CodeBot) {
		if store != nil {
			b.store = store
		}
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(b *CodeBot) {
		if notifier != nil {
			b.notifier = notifier
		}
	}
}

func WithReviewer(reviewer Reviewer) Option {
	return func(b *CodeBot) {
		if reviewer != nil {
			b.reviewer = reviewer
		}
	}
}

func NewCodeBot(config *Config, gh GitHubServices, opts ...Option) *CodeBot {
	bot := &CodeBot{
		gh:         gh,
		config:     config,
		store:      nopStore{},
		notifier:   nopNotifier{},
		reviewer:   ContextReviewer{},
		randSuffix: randomHash,
	}
	for _, opt := range opts {
		opt(bot)
	}
	return bot
}

func randomHash() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
}

func (b *CodeBot) record(ctx context.Context, action Action) {
	if err := b.store.RecordAction(ctx, action); err != nil {
		WithField("kind", action.Kind).Warn("Failed to record action for %s#%d: %v", action.Repo, action.Number, err)
	}
}

func (b *CodeBot) notify(ctx context.Context, text string) {
	if err := b.notifier.Notify(ctx, text); err != nil {
		Warn("Notification failed: %v", err)
	}
}

func (b *CodeBot) maxParallel() int {
	if b.config == nil || b.config.MaxParallel <= 0 {
		return defaultMaxParallelRequests
	}
	return b.config.MaxParallel
}

func (b *CodeBot) webURL() string {
	if b.config == nil || b.config.GitHubWebURL == "" {
		return defaultWebURL
	}
	return strings.TrimRight(b.config.GitHubWebURL, "/")
}

func (b *CodeBot) branchPrefix() string {
	if b.config == nil || b.config.BranchPrefix == "" {
		return defaultBranchPrefix
	}
	return b.config.BranchPrefix
}
