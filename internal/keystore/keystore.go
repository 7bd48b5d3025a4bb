// Package keystore stores an agent's ed25519 keypair on disk, encrypted
// at rest with an Argon2id-derived AES-256-GCM key.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"

	"github.com/cliplabs/paperclip/internal/ledger"
)

const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MB
	argonThreads = 4
	keyLen       = 32 // 256 bits
	saltLen      = 32
	nonceLen     = 12
)

// keyFile is the on-disk JSON format. All byte fields are hex.
type keyFile struct {
	Version    int    `json:"version"`
	PublicKey  string `json:"public_key"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, keyLen)
}

// Generate creates a fresh ed25519 keypair and writes it to path
// encrypted under password.
func Generate(path, password string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("generate keypair: %w", err)
	}
	if err := Save(path, priv, password); err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

// Save encrypts priv under password and writes the keyfile to path.
func Save(path string, priv ed25519.PrivateKey, password string) error {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	key := deriveKey(password, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("new gcm: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, priv, nil)

	pub := priv.Public().(ed25519.PublicKey)
	kf := keyFile{
		Version:    1,
		PublicKey:  hex.EncodeToString(pub),
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(ciphertext),
	}
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keyfile: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write keyfile: %w", err)
	}
	return nil
}

// Load reads the keyfile at path and decrypts the keypair with password.
func Load(path, password string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read keyfile: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, nil, fmt.Errorf("parse keyfile: %w", err)
	}
	if kf.Version != 1 {
		return nil, nil, fmt.Errorf("unsupported keyfile version %d", kf.Version)
	}

	salt, err := hex.DecodeString(kf.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("decode salt: %w", err)
	}
	nonce, err := hex.DecodeString(kf.Nonce)
	if err != nil {
		return nil, nil, fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := hex.DecodeString(kf.Ciphertext)
	if err != nil {
		return nil, nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	key := deriveKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("new gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt keyfile (wrong password?): %w", err)
	}
	if len(plaintext) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("invalid key material: expected %d bytes, got %d", ed25519.PrivateKeySize, len(plaintext))
	}

	priv := ed25519.PrivateKey(plaintext)
	pub := priv.Public().(ed25519.PublicKey)
	return pub, priv, nil
}

// LoadOrGenerate loads the keypair at path, or generates and saves a new
// one if the file does not exist.
func LoadOrGenerate(path, password string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Generate(path, password)
	}
	return Load(path, password)
}

// IdentityOf returns the ledger identity for an ed25519 public key.
func IdentityOf(pub ed25519.PublicKey) ledger.Identity {
	var id ledger.Identity
	copy(id[:], pub)
	return id
}
