package crypto

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"

	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// Encrypt encrypts plaintext using age with a passphrase (scrypt) recipient.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}

	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("initializing encryption: %w", err)
	}

	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing encrypted data: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}

	return buf.Bytes(), nil
}

// DecryptSecure decrypts ciphertext straight into locked memory.
// Any failure, including a wrong passphrase, is ErrDecryptionFailed.
func DecryptSecure(ciphertext []byte, passphrase string) (*SecureBytes, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, krypterr.Translate(krypterr.ErrDecryptionFailed, err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, krypterr.Translate(krypterr.ErrDecryptionFailed, err)
	}

	plaintext, err := io.ReadAll(r)
	// Ensure plaintext is zeroed on all paths including errors
	defer Zero(plaintext)
	if err != nil {
		return nil, krypterr.Translate(krypterr.ErrDecryptionFailed, err)
	}

	return SecureBytesFromSlice(plaintext)
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
