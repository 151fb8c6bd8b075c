package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rollcam/rollcam/internal/rollcam/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "rollcam-test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_AppliesMigrations(t *testing.T) {
	s := newTestStore(t)
	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 3 {
		t.Errorf("schema version = %d, want 3", v)
	}
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s1, err := store.New(path)
	if err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := store.New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
}

// --- Audit ---

func TestWriteAndReadAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)

	entries := []*store.AuditEntry{
		{Timestamp: base, TraceID: "t_1", Transport: "matrix", Sender: "@a:x", Message: "!", Intent: "show_menu", ReplyKind: "menu"},
		{Timestamp: base.Add(time.Second), TraceID: "t_2", Transport: "webhook", Sender: "U1", Message: "(L1)最新",
			Intent: "show_latest", Machine: sqlString("(L1)"), ReplyKind: "text", Duration: 120 * time.Millisecond},
		{Timestamp: base.Add(2 * time.Second), TraceID: "t_2", Transport: "webhook", Intent: "show_latest",
			ReplyKind: "text", ErrorMessage: sqlString("archive offline")},
	}
	for _, e := range entries {
		if err := s.WriteAudit(ctx, e); err != nil {
			t.Fatalf("WriteAudit: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected ID to be set")
		}
	}

	recent, err := s.GetAuditLog(ctx, 2)
	if err != nil {
		t.Fatalf("GetAuditLog: %v", err)
	}
	if len(recent) != 2 || recent[0].ErrorMessage.String != "archive offline" {
		t.Fatalf("unexpected recent entries: %+v", recent)
	}

	byTrace, err := s.GetAuditByTrace(ctx, "t_2")
	if err != nil {
		t.Fatalf("GetAuditByTrace: %v", err)
	}
	if len(byTrace) != 2 {
		t.Fatalf("expected 2 entries for t_2, got %d", len(byTrace))
	}
	if byTrace[0].Machine.String != "(L1)" || byTrace[0].Duration != 120*time.Millisecond {
		t.Errorf("unexpected first entry %+v", byTrace[0])
	}

	n, err := s.AuditCount(ctx)
	if err != nil || n != 3 {
		t.Errorf("AuditCount = %d, %v", n, err)
	}
}

// --- Members ---

func TestMembers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetMember(ctx, "@amy:x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.UpsertMember(ctx, &store.Member{Sender: "@amy:x", Name: "Amy", Transport: "matrix"}); err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	if err := s.UpsertMember(ctx, &store.Member{Sender: "@amy:x", Name: "Amelia", Transport: "matrix"}); err != nil {
		t.Fatalf("UpsertMember (rename): %v", err)
	}
	if err := s.UpsertMember(ctx, &store.Member{Sender: "U42", Name: "Bo", Transport: "webhook"}); err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}

	m, err := s.GetMember(ctx, "@amy:x")
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if m.Name != "Amelia" {
		t.Errorf("name = %q, want Amelia", m.Name)
	}

	all, err := s.ListMembers(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListMembers = %d, %v", len(all), err)
	}
	if n, _ := s.MemberCount(ctx); n != 2 {
		t.Errorf("MemberCount = %d", n)
	}

	if err := s.DeleteMember(ctx, "U42"); err != nil {
		t.Fatalf("DeleteMember: %v", err)
	}
	if err := s.DeleteMember(ctx, "U42"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}
