package builtin

import "testing"

func TestResolverRejectsEscape(t *testing.T) {
	root := t.TempDir()
	r := newResolver(root)
	if _, err := r.resolve("../outside.txt"); err == nil {
		t.Fatal("expected escape to be rejected")
	}
}

func TestResolverAllowsNested(t *testing.T) {
	root := t.TempDir()
	r := newResolver(root)
	resolved, err := r.resolve("sub/file.txt")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected a resolved path")
	}
}

func TestResolverRejectsEmpty(t *testing.T) {
	r := newResolver(t.TempDir())
	if _, err := r.resolve("  "); err == nil {
		t.Fatal("expected empty path to be rejected")
	}
}
