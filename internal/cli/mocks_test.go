package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/alnah/go-shadowing/internal/config"
	"github.com/alnah/go-shadowing/internal/storage"
)

// ---------------------------------------------------------------------------
// Mock FFmpegResolver
// ---------------------------------------------------------------------------

type mockFFmpegResolver struct {
	ResolveFunc      func(ctx context.Context) (string, error)
	CheckVersionFunc func(ctx context.Context, ffmpegPath string)

	mu           sync.Mutex
	resolveCalls int
}

func (m *mockFFmpegResolver) Resolve(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.resolveCalls++
	m.mu.Unlock()

	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx)
	}
	return "/usr/bin/ffmpeg", nil
}

func (m *mockFFmpegResolver) CheckVersion(ctx context.Context, ffmpegPath string) {
	if m.CheckVersionFunc != nil {
		m.CheckVersionFunc(ctx, ffmpegPath)
	}
}

func (m *mockFFmpegResolver) ResolveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveCalls
}

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func(ctx context.Context) (config.Config, error)

	mu        sync.Mutex
	loadCalls int
}

func (m *mockConfigLoader) Load(ctx context.Context) (config.Config, error) {
	m.mu.Lock()
	m.loadCalls++
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return config.Config{}, nil
}

func (m *mockConfigLoader) LoadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls
}

// ---------------------------------------------------------------------------
// Mock PublisherFactory + Publisher
// ---------------------------------------------------------------------------

type mockPublisher struct {
	PublishFunc func(ctx context.Context, localPath string) (string, error)

	mu        sync.Mutex
	published []string
}

func (m *mockPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	m.mu.Lock()
	m.published = append(m.published, localPath)
	m.mu.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, localPath)
	}
	return "https://drills.example/" + filepath.Base(localPath), nil
}

func (m *mockPublisher) Published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.published...)
}

type mockPublisherFactory struct {
	NewPublisherFunc func(ctx context.Context, cfg storage.S3Config) (storage.Publisher, error)

	mockPublisher *mockPublisher

	mu      sync.Mutex
	configs []storage.S3Config
}

func (m *mockPublisherFactory) NewPublisher(ctx context.Context, cfg storage.S3Config, _ *slog.Logger) (storage.Publisher, error) {
	m.mu.Lock()
	m.configs = append(m.configs, cfg)
	m.mu.Unlock()

	if m.NewPublisherFunc != nil {
		return m.NewPublisherFunc(ctx, cfg)
	}
	if m.mockPublisher == nil {
		m.mockPublisher = &mockPublisher{}
	}
	return m.mockPublisher, nil
}

func (m *mockPublisherFactory) Configs() []storage.S3Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.S3Config(nil), m.configs...)
}

// Compile-time interface verification.
var (
	_ FFmpegResolver    = (*mockFFmpegResolver)(nil)
	_ ConfigLoader      = (*mockConfigLoader)(nil)
	_ PublisherFactory  = (*mockPublisherFactory)(nil)
	_ storage.Publisher = (*mockPublisher)(nil)
)
