package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dfryer1193/cms/blog/domain"
	"github.com/dfryer1193/cms/blog/persistence"
	"github.com/dfryer1193/cms/shared/db/sqlite"
)

type fakeCatalog struct {
	entries    []*domain.CatalogEntry
	replaced   int
	replaceErr error
}

func (f *fakeCatalog) ReplaceAll(ctx context.Context, entries []*domain.CatalogEntry) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced++
	f.entries = entries
	return nil
}

func (f *fakeCatalog) GetEntry(ctx context.Context, slug string) (*domain.CatalogEntry, error) {
	for _, e := range f.entries {
		if e.Slug == slug {
			return e, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCatalog) ListEntries(ctx context.Context, limit int, offset int) ([]*domain.CatalogEntry, error) {
	return f.entries, nil
}

func document(title string, date string, body string) string {
	return "------------------\ntitle: " + title + "\ndate published: " + date + "\n------------------\n" + body
}

func writeSources(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create source dir: %v", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

func readArtifacts(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read target dir: %v", err)
	}

	artifacts := make(map[string]string, len(entries))
	for _, e := range entries {
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("failed to read %s: %v", e.Name(), err)
		}
		artifacts[e.Name()] = string(content)
	}
	return artifacts
}

func setupDirs(t *testing.T) (string, string) {
	root := t.TempDir()
	return filepath.Join(root, "src"), filepath.Join(root, "publish")
}

func TestPublish_Scenario(t *testing.T) {
	sourceDir, targetDir := setupDirs(t)
	writeSources(t, sourceDir, map[string]string{
		"hello-world.md": document("hello-world", "01/01/2024 09:00", "# h1 title\na paragraph"),
	})

	catalog := &fakeCatalog{}
	service := NewPublishService(NewMarkdownRenderer(), catalog)

	summary, err := service.Publish(context.Background(), PublishConfig{SourceDir: sourceDir, TargetDir: targetDir})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if summary.Published != 1 {
		t.Errorf("Published = %d, want 1", summary.Published)
	}
	if len(summary.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", summary.Warnings)
	}

	artifacts := readArtifacts(t, targetDir)
	html, ok := artifacts["hello-world.html"]
	if !ok {
		t.Fatalf("hello-world.html not published, got %v", artifacts)
	}

	heading := strings.Index(html, "<h1 id='h1_title'>h1 title</h1>")
	paragraph := strings.Index(html, "<p>a paragraph</p>")
	if heading < 0 || paragraph < 0 || heading > paragraph {
		t.Errorf("artifact = %q, want heading followed by paragraph", html)
	}

	if catalog.replaced != 1 || len(catalog.entries) != 1 {
		t.Fatalf("catalog replaced %d times with %d entries, want 1 and 1", catalog.replaced, len(catalog.entries))
	}
	got := catalog.entries[0]
	if got.Slug != "hello-world" || got.Title != "hello-world" || got.HTMLPath != "hello-world.html" || got.Snippet != "a paragraph" {
		t.Errorf("catalog entry = %+v", got)
	}
	if !got.Published.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("catalog entry Published = %v", got.Published)
	}
}

func TestPublish_EmptyBody(t *testing.T) {
	sourceDir, targetDir := setupDirs(t)
	writeSources(t, sourceDir, map[string]string{
		"empty.md": document("empty", "01/01/2024 09:00", ""),
		"full.md":  document("full", "02/01/2024 09:00", "text"),
	})

	service := NewPublishService(NewMarkdownRenderer(), nil)
	summary, err := service.Publish(context.Background(), PublishConfig{SourceDir: sourceDir, TargetDir: targetDir})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if summary.Published != 2 {
		t.Errorf("Published = %d, want 2", summary.Published)
	}
	if len(summary.Warnings) != 1 || !strings.Contains(summary.Warnings[0], "empty.md") {
		t.Errorf("Warnings = %v, want exactly one naming empty.md", summary.Warnings)
	}

	artifacts := readArtifacts(t, targetDir)
	if artifacts["empty.html"] != "\n" {
		t.Errorf("empty.html = %q, want a single newline", artifacts["empty.html"])
	}
}

func TestPublish_WhitespaceBodyIsNotEmpty(t *testing.T) {
	sourceDir, targetDir := setupDirs(t)
	writeSources(t, sourceDir, map[string]string{
		"blank.md": document("blank", "01/01/2024 09:00", "  \n\n"),
	})

	service := NewPublishService(NewMarkdownRenderer(), nil)
	summary, err := service.Publish(context.Background(), PublishConfig{SourceDir: sourceDir, TargetDir: targetDir})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if summary.Published != 1 {
		t.Errorf("Published = %d, want 1", summary.Published)
	}
	if len(summary.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none for a whitespace-only body", summary.Warnings)
	}
}

func TestPublish_SameArtifactNameWithCatalog(t *testing.T) {
	root := t.TempDir()
	sourceDir := filepath.Join(root, "src")
	targetDir := filepath.Join(root, "publish")
	writeSources(t, sourceDir, map[string]string{
		"a.md":  document("first", "01/01/2024 09:00", "from markdown"),
		"a.txt": document("second", "02/01/2024 09:00", "from text"),
		"b.md":  document("other", "03/01/2024 09:00", "unrelated"),
	})

	conn, err := sqlite.Open(context.Background(), filepath.Join(root, "catalog.db"))
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	catalog := persistence.NewCatalogRepository(conn)

	for _, policy := range []ErrorPolicy{AbortOnError, SkipAndWarn} {
		t.Run(string(policy), func(t *testing.T) {
			service := NewPublishService(NewMarkdownRenderer(), catalog)
			summary, err := service.Publish(context.Background(), PublishConfig{
				SourceDir:       sourceDir,
				TargetDir:       targetDir,
				OnDocumentError: policy,
			})
			if err != nil {
				t.Fatalf("Publish() error = %v", err)
			}

			if summary.Published != 3 {
				t.Errorf("Published = %d, want 3", summary.Published)
			}

			artifacts := readArtifacts(t, targetDir)
			if len(artifacts) != 2 || !strings.Contains(artifacts["a.html"], "from text") {
				t.Errorf("artifacts = %v, want a.html from a.txt and b.html", artifacts)
			}

			entry, err := catalog.GetEntry(context.Background(), "a")
			if err != nil {
				t.Fatalf("GetEntry() error = %v", err)
			}
			if entry.Title != "second" || entry.Snippet != "from text" {
				t.Errorf("catalog entry = %+v, want the one published last", entry)
			}

			entries, err := catalog.ListEntries(context.Background(), 10, 0)
			if err != nil {
				t.Fatalf("ListEntries() error = %v", err)
			}
			if len(entries) != 2 {
				t.Errorf("catalog has %d entries, want 2", len(entries))
			}
		})
	}
}

func TestPublish_FullRebuildIsIdempotent(t *testing.T) {
	sourceDir, targetDir := setupDirs(t)
	writeSources(t, sourceDir, map[string]string{
		"first.md":  document("first", "01/01/2024 09:00", "# First\n\nbody one"),
		"second.md": document("second", "02/01/2024 09:00", "## Second\n\n- a\n- b\n"),
	})

	service := NewPublishService(NewMarkdownRenderer(), nil)
	cfg := PublishConfig{SourceDir: sourceDir, TargetDir: targetDir}

	if _, err := service.Publish(context.Background(), cfg); err != nil {
		t.Fatalf("first Publish() error = %v", err)
	}
	firstRun := readArtifacts(t, targetDir)

	stray := filepath.Join(targetDir, "stray.txt")
	if err := os.WriteFile(stray, []byte("placed by hand"), 0644); err != nil {
		t.Fatalf("failed to write stray file: %v", err)
	}

	if _, err := service.Publish(context.Background(), cfg); err != nil {
		t.Fatalf("second Publish() error = %v", err)
	}
	secondRun := readArtifacts(t, targetDir)

	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Errorf("stray file still exists after rebuild")
	}

	if len(firstRun) != 2 || len(secondRun) != 2 {
		t.Fatalf("artifacts = %d then %d, want 2 and 2", len(firstRun), len(secondRun))
	}
	for name, content := range firstRun {
		if secondRun[name] != content {
			t.Errorf("%s differs between runs: %q vs %q", name, content, secondRun[name])
		}
	}
}

func TestPublish_AbortOnMalformedDocument(t *testing.T) {
	sourceDir, targetDir := setupDirs(t)
	writeSources(t, sourceDir, map[string]string{
		"a-good.md": document("good", "01/01/2024 09:00", "ok"),
		"b-bad.md":  "no header here\n",
	})

	catalog := &fakeCatalog{}
	service := NewPublishService(NewMarkdownRenderer(), catalog)
	summary, err := service.Publish(context.Background(), PublishConfig{SourceDir: sourceDir, TargetDir: targetDir})
	if err == nil {
		t.Fatalf("Publish() = %+v, want error", summary)
	}

	var formatErr *domain.FormatError
	if !errors.As(err, &formatErr) {
		t.Errorf("error = %v, want a *domain.FormatError in the chain", err)
	}
	if !strings.Contains(err.Error(), "b-bad.md") {
		t.Errorf("error %q does not name the failing document", err.Error())
	}

	// Artifacts written before the failure stay behind
	if _, err := os.Stat(filepath.Join(targetDir, "a-good.html")); err != nil {
		t.Errorf("a-good.html missing after aborted run: %v", err)
	}
	if catalog.replaced != 0 {
		t.Errorf("catalog rebuilt %d times on an aborted run", catalog.replaced)
	}
}

func TestPublish_SkipAndWarn(t *testing.T) {
	sourceDir, targetDir := setupDirs(t)
	writeSources(t, sourceDir, map[string]string{
		"a-good.md":   document("good", "01/01/2024 09:00", "ok"),
		"b-date.md":   document("date", "2024-01-01 10:00", "ok"),
		"c-header.md": "---\ntitle: x\n",
	})

	catalog := &fakeCatalog{}
	service := NewPublishService(NewMarkdownRenderer(), catalog)
	summary, err := service.Publish(context.Background(), PublishConfig{
		SourceDir:       sourceDir,
		TargetDir:       targetDir,
		OnDocumentError: SkipAndWarn,
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if summary.Published != 1 {
		t.Errorf("Published = %d, want 1", summary.Published)
	}
	if len(summary.Warnings) != 2 {
		t.Fatalf("Warnings = %v, want 2", summary.Warnings)
	}
	if !strings.Contains(summary.Warnings[0], "b-date.md") || !strings.Contains(summary.Warnings[1], "c-header.md") {
		t.Errorf("Warnings = %v, want b-date.md then c-header.md", summary.Warnings)
	}

	artifacts := readArtifacts(t, targetDir)
	if len(artifacts) != 1 {
		t.Errorf("artifacts = %v, want only a-good.html", artifacts)
	}
	if len(catalog.entries) != 1 {
		t.Errorf("catalog entries = %d, want 1", len(catalog.entries))
	}
}

func TestPublish_OrderIsByFileName(t *testing.T) {
	sourceDir, targetDir := setupDirs(t)
	writeSources(t, sourceDir, map[string]string{
		"c.md": document("c", "01/01/2024 09:00", ""),
		"a.md": document("a", "01/01/2024 09:00", ""),
		"b.md": document("b", "01/01/2024 09:00", ""),
	})

	service := NewPublishService(NewMarkdownRenderer(), nil)
	summary, err := service.Publish(context.Background(), PublishConfig{SourceDir: sourceDir, TargetDir: targetDir})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	want := []string{"post 'a.md' is empty", "post 'b.md' is empty", "post 'c.md' is empty"}
	if len(summary.Warnings) != len(want) {
		t.Fatalf("Warnings = %v, want %v", summary.Warnings, want)
	}
	for i := range want {
		if summary.Warnings[i] != want[i] {
			t.Errorf("Warnings[%d] = %q, want %q", i, summary.Warnings[i], want[i])
		}
	}
}

func TestPublish_SkipsSubdirectories(t *testing.T) {
	sourceDir, targetDir := setupDirs(t)
	writeSources(t, sourceDir, map[string]string{
		"post.md": document("post", "01/01/2024 09:00", "body"),
	})
	if err := os.Mkdir(filepath.Join(sourceDir, "drafts"), 0755); err != nil {
		t.Fatalf("failed to create sub-directory: %v", err)
	}

	service := NewPublishService(NewMarkdownRenderer(), nil)
	summary, err := service.Publish(context.Background(), PublishConfig{SourceDir: sourceDir, TargetDir: targetDir})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if summary.Published != 1 {
		t.Errorf("Published = %d, want 1", summary.Published)
	}
}

func TestPublish_DirectoryErrors(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "src")
	writeSources(t, existing, map[string]string{})

	// A regular file where the publish directory's parent should be
	blocker := filepath.Join(root, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write blocker: %v", err)
	}

	tests := []struct {
		name string
		cfg  PublishConfig
	}{
		{
			name: "Missing source directory",
			cfg:  PublishConfig{SourceDir: filepath.Join(root, "missing"), TargetDir: filepath.Join(root, "publish")},
		},
		{
			name: "Target equals source",
			cfg:  PublishConfig{SourceDir: existing, TargetDir: existing + string(filepath.Separator)},
		},
		{
			name: "Target contains source",
			cfg:  PublishConfig{SourceDir: existing, TargetDir: root},
		},
		{
			name: "Target is an ancestor of source through a relative path",
			cfg:  PublishConfig{SourceDir: filepath.Join(root, "src", "..", "src"), TargetDir: filepath.Join(existing, "..")},
		},
		{
			name: "Target cannot be created",
			cfg:  PublishConfig{SourceDir: existing, TargetDir: filepath.Join(blocker, "publish")},
		},
	}

	service := NewPublishService(NewMarkdownRenderer(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Publish(context.Background(), tt.cfg)

			var dirErr *domain.DirectoryError
			if !errors.As(err, &dirErr) {
				t.Errorf("error = %v (%T), want *domain.DirectoryError", err, err)
			}
		})
	}
}

func TestPublish_TargetContainingSourceKeepsSources(t *testing.T) {
	root := t.TempDir()
	sourceDir := filepath.Join(root, "content", "src")
	writeSources(t, sourceDir, map[string]string{
		"post.md": document("post", "01/01/2024 09:00", "body"),
	})

	service := NewPublishService(NewMarkdownRenderer(), nil)
	if _, err := service.Publish(context.Background(), PublishConfig{SourceDir: sourceDir, TargetDir: filepath.Join(root, "content")}); err == nil {
		t.Fatal("Publish() should refuse a target that contains the source")
	}

	if _, err := os.Stat(filepath.Join(sourceDir, "post.md")); err != nil {
		t.Errorf("source document removed: %v", err)
	}
}

func TestPublish_SiblingTargetWithSharedPrefix(t *testing.T) {
	root := t.TempDir()
	sourceDir := filepath.Join(root, "site-src")
	writeSources(t, sourceDir, map[string]string{
		"post.md": document("post", "01/01/2024 09:00", "body"),
	})

	service := NewPublishService(NewMarkdownRenderer(), nil)
	if _, err := service.Publish(context.Background(), PublishConfig{SourceDir: sourceDir, TargetDir: filepath.Join(root, "site")}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

func TestPublish_MissingSourceKeepsPreviousOutput(t *testing.T) {
	root := t.TempDir()
	targetDir := filepath.Join(root, "publish")
	writeSources(t, targetDir, map[string]string{"old.html": "<p>old</p>\n"})

	service := NewPublishService(NewMarkdownRenderer(), nil)
	if _, err := service.Publish(context.Background(), PublishConfig{SourceDir: filepath.Join(root, "missing"), TargetDir: targetDir}); err == nil {
		t.Fatal("Publish() should fail for a missing source directory")
	}

	if _, err := os.Stat(filepath.Join(targetDir, "old.html")); err != nil {
		t.Errorf("previous output removed: %v", err)
	}
}

func TestPublish_CatalogError(t *testing.T) {
	sourceDir, targetDir := setupDirs(t)
	writeSources(t, sourceDir, map[string]string{
		"post.md": document("post", "01/01/2024 09:00", "body"),
	})

	catalogErr := errors.New("disk full")
	service := NewPublishService(NewMarkdownRenderer(), &fakeCatalog{replaceErr: catalogErr})
	_, err := service.Publish(context.Background(), PublishConfig{SourceDir: sourceDir, TargetDir: targetDir})
	if !errors.Is(err, catalogErr) {
		t.Errorf("error = %v, want it to wrap %v", err, catalogErr)
	}
}

func TestParseErrorPolicy(t *testing.T) {
	tests := []struct {
		value   string
		want    ErrorPolicy
		wantErr bool
	}{
		{value: "", want: AbortOnError},
		{value: "abort", want: AbortOnError},
		{value: " skip_and_warn ", want: SkipAndWarn},
		{value: "ignore", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseErrorPolicy(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseErrorPolicy(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseErrorPolicy(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestArtifactName(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		{source: "hello-world.md", expected: "hello-world.html"},
		{source: "notes", expected: "notes.html"},
		{source: "archive.tar.md", expected: "archive.tar.html"},
		{source: ".hidden", expected: ".hidden.html"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			if got := ArtifactName(tt.source); got != tt.expected {
				t.Errorf("ArtifactName(%q) = %q, want %q", tt.source, got, tt.expected)
			}
		})
	}
}
