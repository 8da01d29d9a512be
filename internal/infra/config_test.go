package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("EDIT_PROVIDER", "")
	t.Setenv("ASPECT_RATIO", "")
	t.Setenv("MAX_UPLOAD_MB", "")
	t.Setenv("GEMINI_MODEL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.AppEnv != "development" {
		t.Fatalf("AppEnv = %q, want development", cfg.AppEnv)
	}
	if cfg.EditProvider != EditProviderGemini {
		t.Fatalf("EditProvider = %q, want %q", cfg.EditProvider, EditProviderGemini)
	}
	if cfg.AspectRatio != "9:16" {
		t.Fatalf("AspectRatio = %q, want 9:16", cfg.AspectRatio)
	}
	if cfg.GeminiModel != "gemini-2.5-flash-image" {
		t.Fatalf("GeminiModel = %q", cfg.GeminiModel)
	}
	if cfg.MaxUploadBytes != 20<<20 {
		t.Fatalf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 20<<20)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("EDIT_PROVIDER", "Synthetic")
	t.Setenv("GEMINI_TIMEOUT_SECONDS", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://localhost:5173 , ,https://app.example.com")
	t.Setenv("MAX_UPLOAD_MB", "3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.EditProvider != EditProviderSynthetic {
		t.Fatalf("EditProvider = %q, want synthetic", cfg.EditProvider)
	}
	if cfg.GeminiTimeout != 5*time.Second {
		t.Fatalf("GeminiTimeout = %s, want 5s", cfg.GeminiTimeout)
	}
	if cfg.MaxUploadBytes != 3<<20 {
		t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	expected := []string{"http://localhost:5173", "https://app.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(expected) {
		t.Fatalf("CORSAllowedOrigins mismatch: got %#v want %#v", cfg.CORSAllowedOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSAllowedOrigins[i] != origin {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], origin)
		}
	}
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	t.Setenv("EDIT_PROVIDER", "dall-e")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unsupported provider")
	}
}
