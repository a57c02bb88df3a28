package domain

import "testing"

func TestFileUUIDStable(t *testing.T) {
	a := FileUUID("proj-1", "src/main.go")
	b := FileUUID("proj-1", "src/main.go")
	if a != b {
		t.Fatalf("FileUUID not stable: %s != %s", a, b)
	}
	c := FileUUID("proj-1", "src/other.go")
	if a == c {
		t.Fatalf("FileUUID collided across distinct paths")
	}
}

func TestScopeUUIDExcludesLineNumbers(t *testing.T) {
	// Moving a function (changing nothing but its line range) must not
	// change its uuid — invariant 6 of spec.md §3.3.
	fileUUID := FileUUID("proj-1", "src/main.go")
	a := ScopeUUID(fileUUID, "DoThing", "function", "sig-abc")
	b := ScopeUUID(fileUUID, "DoThing", "function", "sig-abc")
	if a != b {
		t.Fatalf("ScopeUUID not stable across calls")
	}
}

func TestEntityUUIDFormat(t *testing.T) {
	id := EntityUUID("organization", NormalizeEntityName("  Apple   Inc. "))
	if id != "entity:organization:apple inc." {
		t.Fatalf("unexpected entity uuid: %s", id)
	}
}

func TestChunkUUID(t *testing.T) {
	id := ChunkUUID("parent-1", 3)
	if id != "parent-1_chunk_3" {
		t.Fatalf("unexpected chunk uuid: %s", id)
	}
}
