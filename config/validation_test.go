package config

import (
	"strings"
	"testing"
)

func TestValidatorNoErrors(t *testing.T) {
	v := NewValidator()
	v.RequireNonEmpty("key", "value").
		RequirePositive("topK", 5).
		ValidateOneOf("route", "rag", "chat", "rag", "web")

	if v.HasErrors() {
		t.Errorf("expected no errors, got %v", v.Errors())
	}
	if v.Error() != nil {
		t.Errorf("expected nil error, got %v", v.Error())
	}
}

func TestRequireNonEmpty(t *testing.T) {
	v := NewValidator()
	v.RequireNonEmpty("apiKey", "")

	if !v.HasErrors() {
		t.Fatalf("expected an error for empty value")
	}
	if !strings.Contains(v.Error().Error(), "apiKey") {
		t.Errorf("error should name the field: %v", v.Error())
	}
}

func TestValidateOneOfRejectsUnknown(t *testing.T) {
	v := NewValidator()
	v.ValidateOneOf("route", "graph", "chat", "rag", "web")

	if !v.HasErrors() {
		t.Errorf("expected unknown option to be rejected")
	}
}

func TestValidateFloatRange(t *testing.T) {
	v := NewValidator()
	v.ValidateFloatRange("temperature", 3.0, 0.0, 2.0)

	if !v.HasErrors() {
		t.Errorf("expected out-of-range temperature to be rejected")
	}
}

func TestConfigValidateMissingKey(t *testing.T) {
	cfg := &Config{
		LLMModel:       "gpt-4o-mini",
		LLMProvider:    "openai",
		DefaultRoute:   "rag",
		SessionBackend: "memory",
		RetrievalTopK:  5,
		WebMaxResults:  3,
	}

	if err := cfg.Validate(); err == nil {
		t.Errorf("expected validation to fail without an API key")
	}
}

func TestConfigValidateOK(t *testing.T) {
	cfg := &Config{
		LLMAPIKey:      "sk-test",
		LLMModel:       "gpt-4o-mini",
		LLMProvider:    "openai",
		DefaultRoute:   "rag",
		SessionBackend: "memory",
		CorpusBackend:  "memory",
		PGPort:         5432,
		RetrievalTopK:  5,
		WebMaxResults:  3,
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}
