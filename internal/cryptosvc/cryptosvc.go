// Package cryptosvc provides the secure-channel primitives some sensor
// drivers need before capture (AES-CBC, HMAC-SHA256, ECDSA P-256, and a
// TLS-1.2-style PRF), built on golang.org/x/crypto. It is consumed only at
// the driver layer; the image and matching cores never import it, keeping
// the "abstract USB transport" and matching pipeline black-box with
// respect to any particular sensor's handshake.
package cryptosvc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"fprint/internal/corerr"
)

// EncryptCBC encrypts plaintext (padded with PKCS#7) under key using AES in
// CBC mode with a random IV, returning iv||ciphertext.
func EncryptCBC(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, corerr.EINVAL
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	out := make([]byte, block.BlockSize()+len(padded))
	iv := out[:block.BlockSize()]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, corerr.EIO
	}
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out[block.BlockSize():], padded)
	return out, nil
}

// DecryptCBC reverses EncryptCBC.
func DecryptCBC(key, ivAndCiphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, corerr.EINVAL
	}
	bs := block.BlockSize()
	if len(ivAndCiphertext) < bs || (len(ivAndCiphertext)-bs)%bs != 0 {
		return nil, corerr.EIO
	}
	iv := ivAndCiphertext[:bs]
	ciphertext := ivAndCiphertext[bs:]
	out := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, bs)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, corerr.EIO
	}
	padLen := int(data[len(data)-1])
	if padLen <= 0 || padLen > blockSize || padLen > len(data) {
		return nil, corerr.EIO
	}
	return data[:len(data)-padLen], nil
}

// HMACSHA256 computes the HMAC-SHA256 of msg under key.
func HMACSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// VerifyHMACSHA256 reports whether mac is the valid HMAC-SHA256 of msg
// under key, using a constant-time comparison.
func VerifyHMACSHA256(key, msg, mac []byte) bool {
	expected := HMACSHA256(key, msg)
	return hmac.Equal(expected, mac)
}

// GenerateECDSAKey generates a P-256 key pair for a driver's device
// authentication handshake.
func GenerateECDSAKey() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, corerr.EIO
	}
	return key, nil
}

// SignECDSA signs digest (already hashed by the caller) with key.
func SignECDSA(key *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest)
	if err != nil {
		return nil, corerr.EIO
	}
	return sig, nil
}

// VerifyECDSA verifies sig over digest against pub.
func VerifyECDSA(pub *ecdsa.PublicKey, digest, sig []byte) bool {
	return ecdsa.VerifyASN1(pub, digest, sig)
}

// TLS12PRF derives outLen bytes of key material from secret, label and
// seed for a pairing handshake: HKDF-Expand (SHA-256) with secret as the
// pseudorandom key and label||seed as the info string. It is not the
// RFC 5246 P_SHA256 construction, so its output differs from a standard
// TLS 1.2 PRF over the same inputs.
func TLS12PRF(secret, label, seed []byte, outLen int) ([]byte, error) {
	info := append(append([]byte{}, label...), seed...)
	reader := hkdf.Expand(sha256.New, secret, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, corerr.EIO
	}
	return out, nil
}
