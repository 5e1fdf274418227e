package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	pepperMu     sync.Mutex
	pepper       string
	pepperLoaded bool
	pepperFile   string
)

// SetPepperPath configures the file the argon2id pepper is loaded from. An
// empty path disables peppering. Changing the path drops any cached pepper.
func SetPepperPath(file string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	pepperFile = file
	pepper = ""
	pepperLoaded = false
}

// Pepper returns the active pepper, loading or generating it on first use.
func Pepper() (string, error) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepperLoaded {
		return pepper, nil
	}
	if pepperFile == "" {
		pepperLoaded = true
		return "", nil
	}

	p, err := loadOrGeneratePepper(pepperFile)
	if err != nil {
		return "", err
	}
	pepper, pepperLoaded = p, true
	return pepper, nil
}

// ReloadPepper re-reads the pepper file, e.g. after a restore.
func ReloadPepper() error {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepperFile == "" {
		return nil
	}
	p, err := loadOrGeneratePepper(pepperFile)
	if err != nil {
		return err
	}
	pepper, pepperLoaded = p, true
	return nil
}

func loadOrGeneratePepper(file string) (string, error) {
	file = filepath.Clean(file)
	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return "", err
	}

	b, err := os.ReadFile(file)
	if err == nil {
		return strings.TrimSpace(string(b)), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	raw := make([]byte, keyLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	p := base64.RawURLEncoding.EncodeToString(raw)
	if err := os.WriteFile(file, []byte(p), 0600); err != nil {
		return "", err
	}
	return p, nil
}
