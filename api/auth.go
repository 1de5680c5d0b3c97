package api

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Authenticator holds the flat (client_id -> bcrypt token hash) map loaded
// once at startup and never mutated afterward (spec.md §6: "the
// authentication map is loaded once at startup and not mutated").
type Authenticator struct {
	hashes map[string][]byte
}

// LoadAuthFile reads a file of "client_id:bcrypt_hash" lines, one per
// client, matching the hash format the teacher's tools/users/add_user.go
// produces with bcrypt.GenerateFromPassword. Blank lines and lines
// starting with '#' are ignored.
func LoadAuthFile(path string) (*Authenticator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening auth file: %w", err)
	}
	defer f.Close()

	hashes := make(map[string][]byte)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("auth file %s line %d: expected client_id:hash", path, lineNo)
		}
		hashes[parts[0]] = []byte(parts[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading auth file: %w", err)
	}

	return &Authenticator{hashes: hashes}, nil
}

// Verify reports whether token is the correct credential for clientID.
func (a *Authenticator) Verify(clientID, token string) bool {
	hash, ok := a.hashes[clientID]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(token)) == nil
}
