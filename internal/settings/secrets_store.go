package settings

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SecretsStore persists provider API keys and caller tokens to a local file.
//
// It is kept apart from config.json so the config can be shared or printed
// freely. Secrets are never echoed back: callers only see derived status such
// as "api key set".
type SecretsStore struct {
	path string
	mu   sync.Mutex

	// getenv is swapped in tests.
	getenv func(string) string
}

func NewSecretsStore(path string) *SecretsStore {
	return &SecretsStore{path: filepath.Clean(strings.TrimSpace(path)), getenv: os.Getenv}
}

func (s *SecretsStore) Path() string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s.path)
}

type secretsFile struct {
	SchemaVersion int                `json:"schema_version"`
	Generation    *generationSecrets `json:"generation,omitempty"`
	Auth          *authSecrets       `json:"auth,omitempty"`
}

type generationSecrets struct {
	ProviderAPIKeys map[string]string `json:"provider_api_keys,omitempty"`
	// FallbackAPIKeys are used once when the primary key is rejected for billing (HTTP 402).
	FallbackAPIKeys map[string]string `json:"fallback_api_keys,omitempty"`
}

type authSecrets struct {
	// OwnerByTokenHash maps sha256(token) to the owner id it authenticates.
	OwnerByTokenHash map[string]string `json:"owner_by_token_hash,omitempty"`
}

// ProviderKeys are the credentials resolved for one provider.
type ProviderKeys struct {
	APIKey         string
	FallbackAPIKey string
}

// ResolveProviderKeys returns the provider's keys. A non-empty value in
// envKey / envFallbackKey overrides the stored one.
func (s *SecretsStore) ResolveProviderKeys(providerID string, envKey string, envFallbackKey string) (ProviderKeys, error) {
	if s == nil {
		return ProviderKeys{}, errors.New("nil secrets store")
	}
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return ProviderKeys{}, errors.New("missing provider id")
	}

	s.mu.Lock()
	sf, err := s.loadLocked()
	s.mu.Unlock()
	if err != nil {
		return ProviderKeys{}, err
	}

	var out ProviderKeys
	if sf.Generation != nil {
		out.APIKey = strings.TrimSpace(sf.Generation.ProviderAPIKeys[providerID])
		out.FallbackAPIKey = strings.TrimSpace(sf.Generation.FallbackAPIKeys[providerID])
	}
	if v := s.env(envKey); v != "" {
		out.APIKey = v
	}
	if v := s.env(envFallbackKey); v != "" {
		out.FallbackAPIKey = v
	}
	return out, nil
}

func (s *SecretsStore) env(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || s.getenv == nil {
		return ""
	}
	return strings.TrimSpace(s.getenv(name))
}

type ProviderAPIKeyPatch struct {
	ProviderID string
	// Fallback selects the fallback key slot instead of the primary one.
	Fallback bool
	// APIKey is the new key to set. If nil, the key is cleared.
	APIKey *string
}

func (s *SecretsStore) SetProviderAPIKey(providerID string, apiKey string, fallback bool) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("missing api key")
	}
	return s.ApplyProviderAPIKeyPatches([]ProviderAPIKeyPatch{{ProviderID: providerID, Fallback: fallback, APIKey: &apiKey}})
}

func (s *SecretsStore) ClearProviderAPIKey(providerID string, fallback bool) error {
	return s.ApplyProviderAPIKeyPatches([]ProviderAPIKeyPatch{{ProviderID: providerID, Fallback: fallback}})
}

func (s *SecretsStore) ApplyProviderAPIKeyPatches(patches []ProviderAPIKeyPatch) error {
	if s == nil {
		return errors.New("nil secrets store")
	}
	if len(patches) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.loadLocked()
	if err != nil {
		return err
	}
	if sf.Generation == nil {
		sf.Generation = &generationSecrets{}
	}
	if sf.Generation.ProviderAPIKeys == nil {
		sf.Generation.ProviderAPIKeys = make(map[string]string)
	}
	if sf.Generation.FallbackAPIKeys == nil {
		sf.Generation.FallbackAPIKeys = make(map[string]string)
	}

	for _, p := range patches {
		providerID := strings.TrimSpace(p.ProviderID)
		if providerID == "" {
			return errors.New("missing provider id")
		}
		keys := sf.Generation.ProviderAPIKeys
		if p.Fallback {
			keys = sf.Generation.FallbackAPIKeys
		}
		if p.APIKey == nil {
			delete(keys, providerID)
			continue
		}
		key := strings.TrimSpace(*p.APIKey)
		if key == "" {
			return errors.New("missing api key")
		}
		keys[providerID] = key
	}

	if len(sf.Generation.ProviderAPIKeys) == 0 {
		sf.Generation.ProviderAPIKeys = nil
	}
	if len(sf.Generation.FallbackAPIKeys) == 0 {
		sf.Generation.FallbackAPIKeys = nil
	}
	return s.saveLocked(sf)
}

// GetProviderAPIKeySet reports which providers have a stored primary key.
func (s *SecretsStore) GetProviderAPIKeySet(providerIDs []string) (map[string]bool, error) {
	if s == nil {
		return nil, errors.New("nil secrets store")
	}
	out := make(map[string]bool, len(providerIDs))

	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.loadLocked()
	if err != nil {
		return nil, err
	}

	var keys map[string]string
	if sf.Generation != nil {
		keys = sf.Generation.ProviderAPIKeys
	}
	for _, id := range providerIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out[id] = strings.TrimSpace(keys[id]) != ""
	}
	return out, nil
}

// SetAuthToken binds token to ownerID. Only the token's hash is stored.
func (s *SecretsStore) SetAuthToken(token string, ownerID string) error {
	if s == nil {
		return errors.New("nil secrets store")
	}
	token = strings.TrimSpace(token)
	ownerID = strings.TrimSpace(ownerID)
	if token == "" || ownerID == "" {
		return errors.New("missing token or owner id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.loadLocked()
	if err != nil {
		return err
	}
	if sf.Auth == nil {
		sf.Auth = &authSecrets{}
	}
	if sf.Auth.OwnerByTokenHash == nil {
		sf.Auth.OwnerByTokenHash = make(map[string]string)
	}
	sf.Auth.OwnerByTokenHash[hashToken(token)] = ownerID
	return s.saveLocked(sf)
}

func (s *SecretsStore) RevokeAuthToken(token string) error {
	if s == nil {
		return errors.New("nil secrets store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.loadLocked()
	if err != nil {
		return err
	}
	if sf.Auth == nil || len(sf.Auth.OwnerByTokenHash) == 0 {
		return nil
	}
	delete(sf.Auth.OwnerByTokenHash, hashToken(strings.TrimSpace(token)))
	if len(sf.Auth.OwnerByTokenHash) == 0 {
		sf.Auth = nil
	}
	return s.saveLocked(sf)
}

// ResolveAuthToken returns the owner id bound to token.
func (s *SecretsStore) ResolveAuthToken(token string) (string, bool, error) {
	if s == nil {
		return "", false, errors.New("nil secrets store")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.loadLocked()
	if err != nil {
		return "", false, err
	}
	if sf.Auth == nil {
		return "", false, nil
	}
	owner := strings.TrimSpace(sf.Auth.OwnerByTokenHash[hashToken(token)])
	return owner, owner != "", nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *SecretsStore) loadLocked() (*secretsFile, error) {
	path := strings.TrimSpace(s.path)
	if path == "" || path == "." {
		return nil, errors.New("missing secrets path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &secretsFile{SchemaVersion: 1}, nil
		}
		return nil, err
	}
	var sf secretsFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return nil, err
	}
	if sf.SchemaVersion == 0 {
		sf.SchemaVersion = 1
	}
	return &sf, nil
}

func (s *SecretsStore) saveLocked(sf *secretsFile) error {
	if sf == nil {
		return errors.New("nil secrets")
	}
	path := strings.TrimSpace(s.path)
	if path == "" || path == "." {
		return errors.New("missing secrets path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	b, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
