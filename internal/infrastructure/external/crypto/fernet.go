package crypto

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/fernet/fernet-go"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/application/port"
)

// FernetDecrypter decrypts Fernet tokens with any of the configured keys.
// Tokens never expire here; ttl 0 disables the age check.
type FernetDecrypter struct {
	keys   []*fernet.Key
	logger *zap.Logger
}

// NewFernetDecrypter parses base64url-encoded keys, newest first
func NewFernetDecrypter(encodedKeys []string, logger *zap.Logger) (*FernetDecrypter, error) {
	if len(encodedKeys) == 0 {
		return nil, fmt.Errorf("at least one fernet key is required")
	}
	keys, err := fernet.DecodeKeys(encodedKeys...)
	if err != nil {
		return nil, fmt.Errorf("invalid fernet key: %w", err)
	}
	return &FernetDecrypter{keys: keys, logger: logger}, nil
}

// DecryptText returns the plaintext, or "" if the token is empty or invalid
func (d *FernetDecrypter) DecryptText(token string) string {
	plain := d.open(token)
	if plain == nil {
		return ""
	}
	return string(plain)
}

// DecryptFile decrypts a token whose plaintext is a base64 file, or returns nil
func (d *FernetDecrypter) DecryptFile(token string) []byte {
	plain := d.open(token)
	if plain == nil {
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(plain)))
	if err != nil {
		d.logger.Warn("Decrypted file is not valid base64", zap.Error(err))
		return nil
	}
	return data
}

func (d *FernetDecrypter) open(token string) []byte {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	plain := fernet.VerifyAndDecrypt([]byte(token), 0, d.keys)
	if plain == nil {
		d.logger.Warn("Failed to decrypt token")
	}
	return plain
}

// Verify interface compliance
var _ port.Decrypter = (*FernetDecrypter)(nil)
