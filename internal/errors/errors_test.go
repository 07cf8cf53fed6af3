package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestWrapKeepsCodeThroughChain(t *testing.T) {
	cause := stdErrors.New("dial tcp: refused")
	wrapped := fmt.Errorf("outer: %w", Wrap(CodeStorageFailure, cause, "写入失败"))

	if CodeOf(wrapped) != CodeStorageFailure {
		t.Fatalf("unexpected code: %s", CodeOf(wrapped))
	}
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("cause should stay reachable")
	}
	if !stdErrors.Is(wrapped, New(CodeStorageFailure, "")) {
		t.Fatalf("errors.Is should match on code")
	}
	if !RetryableError(wrapped) {
		t.Fatalf("storage failures are registered as retryable")
	}
	if SeverityOf(wrapped) != SeverityCritical {
		t.Fatalf("unexpected severity: %s", SeverityOf(wrapped))
	}
}

func TestRegisterAndDefaults(t *testing.T) {
	const custom Code = "TEST_CUSTOM"
	Register(custom, Attributes{Message: "custom", Severity: SeverityWarning})

	err := New(custom, "")
	if err.Message() != "custom" {
		t.Fatalf("expected registered default message, got %q", err.Message())
	}
	if SeverityOf(err) != SeverityWarning || RetryableError(err) {
		t.Fatalf("unexpected attributes: %s %v", SeverityOf(err), RetryableError(err))
	}
	if AttributesOf("NEVER_REGISTERED").Message != AttributesOf(CodeUnknown).Message {
		t.Fatalf("unregistered codes should fall back to UNKNOWN")
	}
}

func TestPlainErrors(t *testing.T) {
	plain := stdErrors.New("plain")
	if CodeOf(plain) != CodeUnknown || RetryableError(plain) {
		t.Fatalf("plain errors should map to a non-retryable UNKNOWN")
	}
	if SeverityOf(plain) != SeverityCritical {
		t.Fatalf("unexpected severity: %s", SeverityOf(plain))
	}
	if CodeOf(nil) != CodeUnknown {
		t.Fatalf("nil should map to UNKNOWN")
	}
}

func TestMetadataIsCopied(t *testing.T) {
	err := New(CodeTimeout, "slow", WithMetadata("provider", "deepseek"))
	meta := err.Metadata()
	if meta["provider"] != "deepseek" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	meta["provider"] = "changed"
	if err.Metadata()["provider"] != "deepseek" {
		t.Fatalf("metadata must be returned as a copy")
	}
	if New(CodeTimeout, "").Metadata() != nil {
		t.Fatalf("errors without metadata should return nil")
	}
}
