package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"telesend/internal/config"
	logx "telesend/pkg/logx"
)

func TestApplyLegacyArgs(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	args := []string{"123:abc", "hello there", "-100200300", "77", "./out/*.log"}
	if err := applyLegacyArgs(cfg, args); err != nil {
		t.Fatalf("applyLegacyArgs: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("Token = %q", cfg.Telegram.Token)
	}
	if cfg.Dispatch.Message != "hello there" {
		t.Fatalf("Message = %q", cfg.Dispatch.Message)
	}
	if cfg.Dispatch.ChatID != -100200300 {
		t.Fatalf("ChatID = %d", cfg.Dispatch.ChatID)
	}
	if cfg.Dispatch.TopicID != 77 {
		t.Fatalf("TopicID = %d", cfg.Dispatch.TopicID)
	}
	if cfg.Dispatch.Files != "./out/*.log" {
		t.Fatalf("Files = %q", cfg.Dispatch.Files)
	}
}

func TestApplyLegacyArgsShort(t *testing.T) {
	t.Parallel()

	if err := applyLegacyArgs(&config.Config{}, []string{"tok", "msg", "123"}); err != nil {
		t.Fatalf("three args should be enough: %v", err)
	}
	if err := applyLegacyArgs(&config.Config{}, []string{"tok", "msg"}); err == nil {
		t.Fatal("expected error for two args")
	}
	if err := applyLegacyArgs(&config.Config{}, []string{"tok", "msg", "not-a-number"}); err == nil {
		t.Fatal("expected error for non-numeric chat-id")
	}
}

func TestResolveFilesSortedAndFiltered(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := resolveFiles(filepath.Join(dir, "*.txt"))
	if err != nil {
		t.Fatalf("resolveFiles: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.txt"),
		filepath.Join(dir, "c.txt"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("files = %v, want %v", got, want)
	}
}

func TestResolveFilesNoMatch(t *testing.T) {
	t.Parallel()

	got, err := resolveFiles(filepath.Join(t.TempDir(), "*.bin"))
	if err != nil {
		t.Fatalf("resolveFiles: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %v", got)
	}
}

func TestResolveFilesEmptyPattern(t *testing.T) {
	t.Parallel()

	got, err := resolveFiles("")
	if err != nil || got != nil {
		t.Fatalf("resolveFiles(\"\") = %v, %v", got, err)
	}
}

func TestBuildConfigFlagOverlay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "telesend.json")
	base := &config.Config{}
	base.Telegram.Token = "from-file"
	base.Dispatch.ChatID = 1
	base.Dispatch.Message = "file message"
	base.Dispatch.MaxFilesPerGroup = 4
	if err := config.Save(path, base); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{
		"--config", path,
		"--chat-id", "42",
		"--retry", "7",
	}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	f := &rootFlags{}
	f.configPath, _ = cmd.Flags().GetString("config")
	f.chatID, _ = cmd.Flags().GetInt64("chat-id")
	f.retry, _ = cmd.Flags().GetInt("retry")

	cfg, err := buildConfig(cmd, f, nil)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}

	if cfg.Telegram.Token != "from-file" {
		t.Fatalf("Token = %q, want file value", cfg.Telegram.Token)
	}
	if cfg.Dispatch.ChatID != 42 {
		t.Fatalf("ChatID = %d, want flag value 42", cfg.Dispatch.ChatID)
	}
	if cfg.Dispatch.RetryAttempts == nil || *cfg.Dispatch.RetryAttempts != 7 {
		t.Fatalf("RetryAttempts = %v, want flag value 7", cfg.Dispatch.RetryAttempts)
	}
	if cfg.Dispatch.MaxFilesPerGroup != 4 {
		t.Fatalf("MaxFilesPerGroup = %d, want file value 4", cfg.Dispatch.MaxFilesPerGroup)
	}
	// Untouched fields pick up defaults.
	if cfg.Dispatch.ParseMode != config.DefaultParseMode {
		t.Fatalf("ParseMode = %q", cfg.Dispatch.ParseMode)
	}
}

func TestSaveConfigWritesDestination(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "bootstrap.json")
	cfg := &config.Config{}
	cfg.Telegram.Token = "123:abc"
	cfg.Dispatch.ChatID = 9
	cfg.Dispatch.Message = "hi"
	cfg.ApplyDefaults()

	f := &rootFlags{saveConfig: dest}
	if err := saveConfigIfRequested(f, cfg, logx.Nop()); err != nil {
		t.Fatalf("saveConfigIfRequested: %v", err)
	}

	got, err := config.Load(dest)
	if err != nil {
		t.Fatalf("Load written config: %v", err)
	}
	if got.Telegram.Token != "123:abc" || got.Dispatch.ChatID != 9 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Dispatch.MaxFilesPerGroup != config.DefaultMaxFilesPerGroup {
		t.Fatalf("defaults not persisted: %+v", got.Dispatch)
	}

	// No destination means no write.
	if err := saveConfigIfRequested(&rootFlags{}, cfg, logx.Nop()); err != nil {
		t.Fatalf("empty destination: %v", err)
	}
}

func TestBuildConfigRejectsExplicitZeroRetry(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{
		"--token", "123:abc",
		"--chat-id", "1",
		"--retry", "0",
	}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	f := &rootFlags{configPath: "telesend.json"}
	f.token, _ = cmd.Flags().GetString("token")
	f.chatID, _ = cmd.Flags().GetInt64("chat-id")
	f.retry, _ = cmd.Flags().GetInt("retry")

	cfg, err := buildConfig(cmd, f, nil)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Dispatch.RetryAttempts == nil || *cfg.Dispatch.RetryAttempts != 0 {
		t.Fatalf("RetryAttempts = %v, want explicit 0 preserved", cfg.Dispatch.RetryAttempts)
	}
	// The run path validates before building any client or engine.
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject --retry 0")
	}
}

func TestBuildConfigMissingExplicitFile(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	missing := filepath.Join(t.TempDir(), "nope.json")
	if err := cmd.ParseFlags([]string{"--config", missing}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	f := &rootFlags{configPath: missing}
	if _, err := buildConfig(cmd, f, nil); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
