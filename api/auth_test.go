package api_test

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"objectstore/api"
)

func writeAuthFile(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "clients.auth")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing auth file: %v", err)
	}
	return path
}

func TestLoadAuthFileAndVerify(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("generating hash: %v", err)
	}

	path := writeAuthFile(t,
		"# comment line",
		"",
		"client-a:"+string(hash),
	)

	auth, err := api.LoadAuthFile(path)
	if err != nil {
		t.Fatalf("LoadAuthFile: %v", err)
	}

	if !auth.Verify("client-a", "s3cret") {
		t.Error("Verify(client-a, s3cret) = false, want true")
	}
	if auth.Verify("client-a", "wrong") {
		t.Error("Verify(client-a, wrong) = true, want false")
	}
	if auth.Verify("unknown-client", "s3cret") {
		t.Error("Verify(unknown-client, ...) = true, want false")
	}
}

func TestLoadAuthFileRejectsMalformedLine(t *testing.T) {
	path := writeAuthFile(t, "not-a-valid-line-without-colon")
	if _, err := api.LoadAuthFile(path); err == nil {
		t.Fatal("LoadAuthFile on malformed line = nil error, want error")
	}
}
