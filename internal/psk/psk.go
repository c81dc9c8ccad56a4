// Package psk implements the channel cipher: pre-shared key expansion,
// per-packet nonce derivation and AES-CTR encryption/decryption.
//
// Decryption is stateless: the same key, packet id, sender and ciphertext
// always yield the same plaintext. A wrong key never fails here; it produces
// garbage that the caller detects when parsing the result.
package psk

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
)

// DefaultKey is the well-known network key selected by the one-byte PSK 0x01.
var DefaultKey = []byte{
	0xd4, 0xf1, 0xbb, 0x3a, 0x20, 0x29, 0x07, 0x59,
	0xf0, 0xbc, 0xff, 0xab, 0xcf, 0x4e, 0x69, 0x01,
}

var (
	ErrKeyTooLong = errors.New("psk: key longer than 32 bytes")
	ErrKeySize    = errors.New("psk: key is not 16 or 32 bytes")
)

// Expand turns a configured PSK into an AES key. A nil result with a nil
// error means the channel is unencrypted.
//
//	len 0          no encryption
//	len 1, 0x00    no encryption
//	len 1, n       DefaultKey with the last byte incremented by n-1
//	len 2..15      zero padded to AES-128
//	len 17..31     zero padded to AES-256
func Expand(psk []byte) ([]byte, error) {
	switch n := len(psk); {
	case n == 0:
		return nil, nil
	case n == 1:
		index := psk[0]
		if index == 0 {
			return nil, nil
		}
		key := make([]byte, len(DefaultKey))
		copy(key, DefaultKey)
		key[len(key)-1] += index - 1
		return key, nil
	case n < 16:
		return pad(psk, 16), nil
	case n == 16, n == 32:
		key := make([]byte, n)
		copy(key, psk)
		return key, nil
	case n < 32:
		return pad(psk, 32), nil
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrKeyTooLong, n)
	}
}

func pad(b []byte, size int) []byte {
	out := make([]byte, size)
	copy(out, b)
	return out
}

// Nonce builds the 16-byte initial counter block: packet id as a
// little-endian uint64, then the sender node as a little-endian uint32,
// then four zero bytes of block counter.
func Nonce(packetID, fromNode uint32) [aes.BlockSize]byte {
	var iv [aes.BlockSize]byte
	binary.LittleEndian.PutUint64(iv[0:8], uint64(packetID))
	binary.LittleEndian.PutUint32(iv[8:12], fromNode)
	return iv
}

// Decrypt runs AES-CTR over ciphertext. It only fails when key is not a
// valid AES-128/256 key.
func Decrypt(ciphertext, key []byte, packetID, fromNode uint32) ([]byte, error) {
	return xorKeyStream(ciphertext, key, packetID, fromNode)
}

// Encrypt is the inverse of Decrypt; CTR mode makes them the same operation.
func Encrypt(plaintext, key []byte, packetID, fromNode uint32) ([]byte, error) {
	return xorKeyStream(plaintext, key, packetID, fromNode)
}

func xorKeyStream(in, key []byte, packetID, fromNode uint32) ([]byte, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := Nonce(packetID, fromNode)
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv[:]).XORKeyStream(out, in)
	return out, nil
}

// ChannelHash folds the channel name and its expanded key into the one-byte
// hash carried in every packet header.
func ChannelHash(name string, key []byte) uint32 {
	return uint32(xorFold([]byte(name)) ^ xorFold(key))
}

func xorFold(b []byte) byte {
	var h byte
	for _, c := range b {
		h ^= c
	}
	return h
}
