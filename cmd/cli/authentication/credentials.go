// Package authentication stores the player token minted by
// "nuhubCLI token --save" in the OS keyring.
package authentication

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "nuhub-cli"
	keyringUser    = "player_token"
)

// ErrNoCredentials means nothing usable is saved: no entry, or an expired one.
var ErrNoCredentials = errors.New("no saved player token")

// Credentials is what "token --save" writes. PlayerID is kept as typed on
// the command line; the token itself carries the decoded identity.
type Credentials struct {
	Token     string `json:"token"`
	PlayerID  string `json:"player_id,omitempty"`
	Role      string `json:"role,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"` // unix seconds, 0 = never
}

func (c *Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt != 0 && now.Unix() >= c.ExpiresAt
}

func SaveCredentials(c *Credentials) error {
	if c.Token == "" {
		return errors.New("refusing to save an empty token")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyringUser, string(data))
}

// LoadCredentials returns the saved token. Expired entries are removed and
// reported as ErrNoCredentials.
func LoadCredentials(now time.Time) (*Credentials, error) {
	raw, err := keyring.Get(keyringService, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}

	var c Credentials
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("corrupt keyring entry: %w", err)
	}
	if c.Expired(now) {
		_ = ClearCredentials()
		return nil, ErrNoCredentials
	}
	return &c, nil
}

// ClearCredentials removes the saved token. Clearing nothing is not an error.
func ClearCredentials() error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
