// Copyright (C) 2026 fadechat <dev@fadechat.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// Failures are values here: nothing in this package panics or lets a bad
// row take down a caller iterating a result set.
var (
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	ErrMalformedIV         = errors.New("malformed iv")
	ErrBadPadding          = errors.New("bad padding")
)

// fallbackKeyHex keeps the service up when MESSAGE_KEY is absent or
// malformed. Messages stored under it are not confidential; Box.Insecure
// reports the state so the operator gets a loud startup warning instead of
// a silent constant.
const fallbackKeyHex = "6661646563686174206465762d6f6e6c79206661646563686174206465762121"

// Box encrypts message bodies at rest with AES-256-CBC. Ciphertext and IV
// travel as hex strings, paired 1:1.
type Box struct {
	key      []byte
	insecure bool
}

// NewBox builds a box from a 64-char hex key, substituting the fallback
// key when the input does not parse to 32 bytes.
func NewBox(hexKey string) *Box {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		fallback, _ := hex.DecodeString(fallbackKeyHex)
		return &Box{key: fallback, insecure: true}
	}
	return &Box{key: key}
}

// Insecure reports whether the box is running on the built-in fallback key.
func (b *Box) Insecure() bool {
	return b.insecure
}

func (b *Box) Encrypt(plaintext string) (content, iv string, err error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", "", err
	}

	rawIV := make([]byte, aes.BlockSize)
	if _, err := rand.Read(rawIV); err != nil {
		return "", "", fmt.Errorf("iv generation: %w", err)
	}

	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, rawIV).CryptBlocks(out, padded)

	return hex.EncodeToString(out), hex.EncodeToString(rawIV), nil
}

func (b *Box) Decrypt(content, iv string) (string, error) {
	rawContent, err := hex.DecodeString(content)
	if err != nil || len(rawContent) == 0 || len(rawContent)%aes.BlockSize != 0 {
		return "", ErrMalformedCiphertext
	}

	rawIV, err := hex.DecodeString(iv)
	if err != nil || len(rawIV) != aes.BlockSize {
		return "", ErrMalformedIV
	}

	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", err
	}

	out := make([]byte, len(rawContent))
	cipher.NewCBCDecrypter(block, rawIV).CryptBlocks(out, rawContent)

	plaintext, err := unpad(out)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func pad(in []byte) []byte {
	n := aes.BlockSize - len(in)%aes.BlockSize
	out := make([]byte, len(in)+n)
	copy(out, in)
	for i := len(in); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(in []byte) ([]byte, error) {
	if len(in) == 0 {
		return nil, ErrBadPadding
	}
	n := int(in[len(in)-1])
	if n == 0 || n > aes.BlockSize || n > len(in) {
		return nil, ErrBadPadding
	}
	for _, b := range in[len(in)-n:] {
		if int(b) != n {
			return nil, ErrBadPadding
		}
	}
	return in[:len(in)-n], nil
}
