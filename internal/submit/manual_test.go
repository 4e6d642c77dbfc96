package submit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestManualAdapterWritesPackage(t *testing.T) {
	dir := t.TempDir()
	adapter := NewManualAdapter(dir, zap.NewNop())

	receipt, err := adapter.Submit(context.Background(), approvedApplication(t), liveOpportunity())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if receipt.Status != "submitted" {
		t.Fatalf("unexpected status: %q", receipt.Status)
	}
	if receipt.ConfirmationID == "" {
		t.Fatal("expected package path as confirmation")
	}

	if _, err := os.Stat(filepath.Join(receipt.ConfirmationID, "complete_application.txt")); err != nil {
		t.Fatalf("expected package contents: %v", err)
	}
	if _, err := os.Stat(filepath.Join(receipt.ConfirmationID, "metadata.json")); err != nil {
		t.Fatalf("expected package metadata: %v", err)
	}
}

func TestManualAdapterWrapsWriteFailure(t *testing.T) {
	// A file in place of the target directory makes the write fail.
	base := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(base, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to plant blocking file: %v", err)
	}

	adapter := NewManualAdapter(base, zap.NewNop())
	_, err := adapter.Submit(context.Background(), approvedApplication(t), liveOpportunity())
	if err == nil {
		t.Fatal("expected error when package directory cannot be created")
	}

	var subErr *SubmissionError
	if !errors.As(err, &subErr) || subErr.Portal != "manual" {
		t.Fatalf("expected SubmissionError from manual portal, got %v", err)
	}
}
