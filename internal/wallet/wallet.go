package wallet

import (
	"chainbridgex/internal/config"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/sha3"
)

const (
	argon2Time    = uint32(1)
	argon2Memory  = 64 * 1024 // KiB
	argon2Threads = uint8(4)
	saltSize      = 16
)

var ErrWrongPassword = errors.New("wrong keystore password")

// Wallet is the miner identity. Its address receives coinbase rewards.
type Wallet struct {
	Address    string
	PublicKey  *mode3.PublicKey
	privateKey *mode3.PrivateKey
}

type keystore struct {
	Address      string    `json:"address"`
	PublicKey    string    `json:"public_key"`
	EncryptedKey string    `json:"encrypted_key"`
	Salt         string    `json:"salt"`
	Nonce        string    `json:"nonce"`
	Created      time.Time `json:"created"`
}

func Generate() (*Wallet, error) {
	pub, priv, err := mode3.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Wallet{
		Address:    DeriveAddress(pub.Bytes()),
		PublicKey:  pub,
		privateKey: priv,
	}, nil
}

// DeriveAddress is the first 20 bytes of the SHA3-256 of the public key, hex encoded.
func DeriveAddress(pub []byte) string {
	sum := sha3.Sum256(pub)
	return hex.EncodeToString(sum[:20])
}

// LoadOrCreate opens the keystore at path, generating and saving a new wallet
// when none exists yet.
func LoadOrCreate(path, password string, logger zerolog.Logger) (*Wallet, error) {
	w, err := Load(path, password)
	if err == nil {
		logger.Info().Str("address", w.Address).Msg("Miner wallet loaded")
		return w, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if password == "" {
		logger.Warn().Msg("Keystore password is empty; set CHAINBRIDGEX_KEYSTORE_PASSWORD")
	}
	w, err = Generate()
	if err != nil {
		return nil, err
	}
	if err := w.Save(path, password); err != nil {
		return nil, err
	}
	logger.Info().Str("address", w.Address).Str("keystore", path).Msg("Miner wallet created")
	return w, nil
}

func Load(path, password string) (*Wallet, error) {
	data, err := config.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var ks keystore
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, &config.Error{Message: fmt.Sprintf("failed to parse keystore %s: %v", path, err), Err: err}
	}

	salt, err := hex.DecodeString(ks.Salt)
	if err != nil {
		return nil, fmt.Errorf("keystore salt: %w", err)
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return nil, fmt.Errorf("keystore nonce: %w", err)
	}
	sealed, err := hex.DecodeString(ks.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("keystore key: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	raw, err := gcm.Open(nil, nonce, sealed, []byte(ks.Address))
	if err != nil {
		return nil, ErrWrongPassword
	}

	var priv mode3.PrivateKey
	if err := priv.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("keystore key: %w", err)
	}
	pub, ok := priv.Public().(*mode3.PublicKey)
	if !ok {
		return nil, errors.New("keystore key has no public key")
	}

	w := &Wallet{
		Address:    DeriveAddress(pub.Bytes()),
		PublicKey:  pub,
		privateKey: &priv,
	}
	if w.Address != ks.Address || hex.EncodeToString(pub.Bytes()) != ks.PublicKey {
		return nil, fmt.Errorf("keystore %s: address does not match key", path)
	}
	return w, nil
}

// Save encrypts the private key under password and writes the keystore.
func (w *Wallet) Save(path, password string) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	ks := keystore{
		Address:      w.Address,
		PublicKey:    hex.EncodeToString(w.PublicKey.Bytes()),
		EncryptedKey: hex.EncodeToString(gcm.Seal(nil, nonce, w.privateKey.Bytes(), []byte(w.Address))),
		Salt:         hex.EncodeToString(salt),
		Nonce:        hex.EncodeToString(nonce),
		Created:      time.Now().UTC(),
	}
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	return config.WriteFile(path, data)
}

// Sign signs msg with the wallet's private key.
func (w *Wallet) Sign(msg []byte) []byte {
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(w.privateKey, msg, sig)
	return sig
}

// Verify reports whether sig is a valid signature of msg under pub.
func Verify(pub *mode3.PublicKey, msg, sig []byte) bool {
	return mode3.Verify(pub, msg, sig)
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
