package fileid

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDocumentID(t *testing.T) {
	tests := map[string]string{
		"/data/Employee Handbook.pdf": "Employee Handbook.pdf",
		"data/leave.docx":             "leave.docx",
		"/data/./x/../policy.txt":     "policy.txt",
		"policy.md":                   "policy.md",
	}
	for in, want := range tests {
		if got := DocumentID(in); got != want {
			t.Errorf("DocumentID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDigest(t *testing.T) {
	// SHA-256 of "abc".
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Digest([]byte("abc")); got != want {
		t.Errorf("Digest = %s", got)
	}

	path := filepath.Join(t.TempDir(), "abc.txt")
	if err := os.WriteFile(path, []byte("abc"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := DigestFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("DigestFile = %s", got)
	}
	if _, err := DigestFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
