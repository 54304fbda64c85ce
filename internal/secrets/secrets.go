// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of
// plain-text files and an optional dotenv file.
//
// Each file in the directory is one secret: the filename is the key name
// and the trimmed file contents are the value. Dotenv variables are mapped
// onto the same names by lowercasing and replacing underscores with
// dashes, so ANTHROPIC_API_KEY fills anthropic-api-key.
//
// Supported keys: anthropic-api-key, openalex-email.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Well-known secret names.
const (
	AnthropicAPIKey = "anthropic-api-key"
	OpenAlexEmail   = "openalex-email"
)

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads all files in dir and then fills keys missing from them with
// the variables of envFile. A missing directory or env file is not an
// error. Unreadable files produce a warning on stderr but do not abort.
func Load(dir, envFile string) (Secrets, error) {
	out := Secrets{}
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			out[name] = v
		}
	}

	if envFile == "" {
		return out, nil
	}
	env, err := godotenv.Read(envFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", envFile, err)
	}
	for k, v := range env {
		name := keyName(k)
		if _, ok := out[name]; !ok && strings.TrimSpace(v) != "" {
			out[name] = strings.TrimSpace(v)
		}
	}
	return out, nil
}

// Get returns the secret named key, falling back to the process
// environment variable of the same name in upper snake case.
func (s Secrets) Get(key string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return strings.TrimSpace(os.Getenv(envName(key)))
}

func keyName(env string) string {
	return strings.ReplaceAll(strings.ToLower(env), "_", "-")
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
