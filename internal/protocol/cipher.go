package protocol

import (
	"bytes"
	"crypto/aes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Cipher encrypts and decrypts 3.1 payloads with the device local key.
//
// The device firmware uses AES-128 in ECB mode with PKCS#7 padding and no IV.
// This is weak but fixed on the peer side, so it is reproduced exactly.
type Cipher struct {
	key []byte
}

// NewCipher creates a cipher for a 16-byte local key
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("local key must be %d bytes, got %d", KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Cipher{key: k}, nil
}

// Encrypt pads raw to the block size, encrypts each block independently and
// returns the base64 encoding of the ciphertext.
func (c *Cipher) Encrypt(raw []byte) []byte {
	block, _ := aes.NewCipher(c.key) // key length checked in NewCipher

	padded := pkcs7Pad(raw, aes.BlockSize)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += aes.BlockSize {
		block.Encrypt(out[i:i+aes.BlockSize], padded[i:i+aes.BlockSize])
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(out)))
	base64.StdEncoding.Encode(encoded, out)
	return encoded
}

// Decrypt reverses Encrypt: base64 decode, ECB decrypt, unpad.
func (c *Cipher) Decrypt(enc []byte) ([]byte, error) {
	data := make([]byte, base64.StdEncoding.DecodedLen(len(enc)))
	n, err := base64.StdEncoding.Decode(data, enc)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 ciphertext: %w", err)
	}
	data = data[:n]

	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of %d", len(data), aes.BlockSize)
	}

	block, _ := aes.NewCipher(c.key)
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		block.Decrypt(out[i:i+aes.BlockSize], data[i:i+aes.BlockSize])
	}

	return pkcs7Unpad(out, aes.BlockSize)
}

// Tag computes the integrity tag sent with encrypted payloads: characters
// 8 to 24 of the hex MD5 digest of "data=<b64>||lpv=3.1||<key>".
func Tag(b64 []byte, key []byte) []byte {
	var pre bytes.Buffer
	pre.WriteString("data=")
	pre.Write(b64)
	pre.WriteString("||lpv=")
	pre.WriteString(ProtocolVersion)
	pre.WriteString("||")
	pre.Write(key)

	sum := md5.Sum(pre.Bytes())
	digest := hex.EncodeToString(sum[:])
	return []byte(digest[8:24])
}

// EncryptPayload produces the SET payload: version marker, tag, base64 ciphertext.
func (c *Cipher) EncryptPayload(plain []byte) []byte {
	b64 := c.Encrypt(plain)
	tag := Tag(b64, c.key)

	out := make([]byte, 0, len(ProtocolVersion)+len(tag)+len(b64))
	out = append(out, ProtocolVersion...)
	out = append(out, tag...)
	out = append(out, b64...)
	return out
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+padLen)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding length %d", padLen)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("invalid padding byte 0x%02x", b)
		}
	}
	return data[:len(data)-padLen], nil
}
