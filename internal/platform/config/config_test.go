package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":    "feedlens-dev",
		"API_GOOGLE_OAUTH_CLIENT_ID": "oauth-client",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "feedlens-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "feedlens-dev" {
		t.Errorf("expected pubsub project to default to firebase project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.SyncTopic != defaultSyncTopic {
		t.Errorf("unexpected default sync topic: %s", cfg.PubSub.SyncTopic)
	}
	if cfg.PubSub.Enabled {
		t.Error("expected pubsub disabled by default")
	}
	if cfg.Cache.ProductTTL != defaultProductTTL {
		t.Errorf("unexpected default product ttl: %s", cfg.Cache.ProductTTL)
	}
	if cfg.Cache.ClientTTL != defaultClientCacheTTL {
		t.Errorf("unexpected default client ttl: %s", cfg.Cache.ClientTTL)
	}
	if cfg.Merchant.PageSize != defaultPageSize {
		t.Errorf("unexpected default page size: %d", cfg.Merchant.PageSize)
	}
	if cfg.Merchant.PageDelay != defaultPageDelay {
		t.Errorf("unexpected default page delay: %s", cfg.Merchant.PageDelay)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                "9090",
		"API_SERVER_READ_TIMEOUT":        "20s",
		"API_SERVER_IDLE_TIMEOUT":        "2m",
		"API_FIREBASE_PROJECT_ID":        "feedlens-prod",
		"API_FIRESTORE_PROJECT_ID":       "feedlens-fire",
		"API_GOOGLE_OAUTH_CLIENT_ID":     "oauth-client",
		"API_GOOGLE_OAUTH_CLIENT_SECRET": "secret://oauth/client",
		"API_MERCHANT_PAGE_SIZE":         "100",
		"API_MERCHANT_PAGE_DELAY":        "200ms",
		"API_CACHE_PRODUCT_TTL":          "5m",
		"API_CACHE_CLIENT_TTL":           "1h",
		"API_PUBSUB_PROJECT_ID":          "feedlens-events",
		"API_PUBSUB_SYNC_TOPIC":          "sync-prod",
		"API_PUBSUB_ENABLED":             "true",
	}

	secrets := map[string]string{
		"secret://oauth/client": "oauth-secret",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Firestore.ProjectID != "feedlens-fire" {
		t.Errorf("unexpected firestore project %s", cfg.Firestore.ProjectID)
	}
	if cfg.GoogleOAuth.ClientSecret != "oauth-secret" {
		t.Errorf("expected resolved oauth secret, got %s", cfg.GoogleOAuth.ClientSecret)
	}
	if cfg.Merchant.PageSize != 100 {
		t.Errorf("unexpected page size %d", cfg.Merchant.PageSize)
	}
	if cfg.Merchant.PageDelay != 200*time.Millisecond {
		t.Errorf("unexpected page delay %s", cfg.Merchant.PageDelay)
	}
	if cfg.Cache.ProductTTL != 5*time.Minute {
		t.Errorf("unexpected product ttl %s", cfg.Cache.ProductTTL)
	}
	if cfg.Cache.ClientTTL != time.Hour {
		t.Errorf("unexpected client ttl %s", cfg.Cache.ClientTTL)
	}
	if cfg.PubSub.ProjectID != "feedlens-events" {
		t.Errorf("unexpected pubsub project %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.SyncTopic != "sync-prod" {
		t.Errorf("unexpected sync topic %s", cfg.PubSub.SyncTopic)
	}
	if !cfg.PubSub.Enabled {
		t.Error("expected pubsub enabled")
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIREBASE_PROJECT_ID=feedlens-dot\nAPI_GOOGLE_OAUTH_CLIENT_ID=oauth-dot\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "feedlens-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":        "feedlens-dev",
		"API_GOOGLE_OAUTH_CLIENT_ID":     "oauth-client",
		"API_GOOGLE_OAUTH_CLIENT_SECRET": "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
		"API_SECRET_VERSION_PINS": "secret://oauth/client=5",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
	if got := values["API_SECRET_VERSION_PINS"]; got != "secret://oauth/client=5" {
		t.Fatalf("expected override version pin, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":    "feedlens-dev",
		"API_GOOGLE_OAUTH_CLIENT_ID": "oauth-client",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("GoogleOAuth.ClientSecret"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error, got nil")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("GoogleOAuth.ClientSecret")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":    "feedlens-dev",
		"API_GOOGLE_OAUTH_CLIENT_ID": "oauth-client",
	}

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic when required secrets missing")
		}
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if len(missing.Names()) != 1 || missing.Names()[0] != "GoogleOAuth.ClientSecret" {
			t.Fatalf("unexpected missing secrets %v", missing.Names())
		}
	}()

	Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("GoogleOAuth.ClientSecret"),
		WithPanicOnMissingSecrets(),
	)
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":        "feedlens-dev",
		"API_GOOGLE_OAUTH_CLIENT_ID":     "oauth-client",
		"API_GOOGLE_OAUTH_CLIENT_SECRET": "sm://oauth/client",
	}

	secrets := map[string]string{
		"secret://oauth/client": "legacy-secret",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.GoogleOAuth.ClientSecret != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.GoogleOAuth.ClientSecret)
	}
}
