// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/roomgpt/lib/secret"
)

// identityPrefix starts every x25519 identity line.
const identityPrefix = "AGE-SECRET-KEY-1"

// Keypair is an age x25519 identity and its public recipient.
type Keypair struct {
	// Identity is the AGE-SECRET-KEY-1... string. Never log it.
	Identity *secret.Buffer

	// Recipient is the age1... public key handed to Seal.
	Recipient string
}

// Close releases the identity memory.
func (keypair *Keypair) Close() error {
	if keypair.Identity == nil {
		return nil
	}
	return keypair.Identity.Close()
}

// GenerateKeypair creates a new x25519 identity.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("sealed: generating identity: %w", err)
	}
	// identity.String() leaves one heap copy behind; the buffer is the
	// copy that outlives this call.
	protected, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting identity: %w", err)
	}
	return &Keypair{
		Identity:  protected,
		Recipient: identity.Recipient().String(),
	}, nil
}

// Seal encrypts plaintext to every recipient and returns the armored
// ciphertext.
func Seal(plaintext []byte, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, errors.New("sealed: at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("sealed: recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var output bytes.Buffer
	armored := armor.NewWriter(&output)
	encrypted, err := age.Encrypt(armored, recipients...)
	if err != nil {
		return nil, fmt.Errorf("sealed: %w", err)
	}
	if _, err := encrypted.Write(plaintext); err != nil {
		return nil, fmt.Errorf("sealed: writing plaintext: %w", err)
	}
	if err := encrypted.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finishing message: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finishing armor: %w", err)
	}
	return output.Bytes(), nil
}

// Open decrypts an armored message with identity. Surrounding
// whitespace in the plaintext is trimmed; an empty plaintext is an
// error because every sealed value here is a credential.
func Open(ciphertext []byte, identity *secret.Buffer) (*secret.Buffer, error) {
	parsed, err := age.ParseX25519Identity(identity.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing identity: %w", err)
	}

	reader, err := age.Decrypt(armor.NewReader(bytes.NewReader(ciphertext)), parsed)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: reading plaintext: %w", err)
	}
	defer secret.Zero(plaintext)

	trimmed := bytes.TrimSpace(plaintext)
	if len(trimmed) == 0 {
		return nil, errors.New("sealed: decrypted value is empty")
	}
	return secret.NewFromBytes(trimmed)
}

// ReadIdentityFile loads the first identity line from an age-keygen
// style file. Comment lines are skipped.
func ReadIdentityFile(path string) (*secret.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading identity: %w", err)
	}
	defer secret.Zero(data)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if bytes.HasPrefix(line, []byte(identityPrefix)) {
			return secret.NewFromBytes(line)
		}
	}
	return nil, fmt.Errorf("sealed: no identity in %s", path)
}

// OpenFile decrypts the sealed file at path with the identity stored at
// identityPath.
func OpenFile(path, identityPath string) (*secret.Buffer, error) {
	identity, err := ReadIdentityFile(identityPath)
	if err != nil {
		return nil, err
	}
	defer identity.Close()

	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading %s: %w", path, err)
	}
	return Open(ciphertext, identity)
}
