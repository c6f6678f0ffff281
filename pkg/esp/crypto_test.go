package esp

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderDecrypt(t *testing.T) {
	plain := bytes.Repeat([]byte("0123456789abcdef"), 4)
	tests := []struct {
		name     string
		provider string
		key      []byte
		encrypt  func(key, iv, plain []byte) []byte
	}{
		{
			name:     "aes128 cbc",
			provider: "aes-128-cbc",
			key:      bytes.Repeat([]byte{0x11}, 16),
			encrypt:  cbcEncrypt(aes.NewCipher),
		},
		{
			name:     "aes256 cbc",
			provider: "aes-256-cbc",
			key:      bytes.Repeat([]byte{0x22}, 32),
			encrypt:  cbcEncrypt(aes.NewCipher),
		},
		{
			name:     "3des cbc",
			provider: "des-ede3-cbc",
			key:      []byte("0123456789abcdefghijklmn"),
			encrypt:  cbcEncrypt(des.NewTripleDESCipher),
		},
		{
			name:     "aes128 ctr",
			provider: "aes-128-ctr",
			key:      bytes.Repeat([]byte{0x33}, 16),
			encrypt: func(key, iv, plain []byte) []byte {
				block, _ := aes.NewCipher(key)
				out := make([]byte, len(plain))
				cipher.NewCTR(block, iv).XORKeyStream(out, plain)
				return out
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := DefaultProvider.Cipher(tt.provider)
			require.NoError(t, err)
			iv := bytes.Repeat([]byte{0x5a}, c.IVSize())
			ciphertext := tt.encrypt(tt.key, iv, plain)

			d, err := c.NewDecrypter(tt.key, iv)
			require.NoError(t, err)
			out := make([]byte, len(ciphertext))
			// two updates to exercise streaming across calls
			half := len(ciphertext) / 2
			n1, err := d.Update(out, ciphertext[:half])
			require.NoError(t, err)
			n2, err := d.Update(out[n1:], ciphertext[half:])
			require.NoError(t, err)
			n3, err := d.Final(out[n1+n2:])
			require.NoError(t, err)
			assert.Equal(t, len(plain), n1+n2+n3)
			assert.Equal(t, plain, out[:n1+n2+n3])

			d.Reset()
			_, err = d.Update(out, ciphertext)
			assert.True(t, errors.Is(err, ErrDecrypterReset))
		})
	}
}

func TestProviderErrors(t *testing.T) {
	_, err := DefaultProvider.Cipher("rc4")
	assert.True(t, errors.Is(err, ErrUnknownCipher))

	c, err := DefaultProvider.Cipher("aes-128-cbc")
	require.NoError(t, err)

	_, err = c.NewDecrypter(make([]byte, 15), make([]byte, 16))
	assert.True(t, errors.Is(err, ErrKeySize))
	_, err = c.NewDecrypter(make([]byte, 16), make([]byte, 8))
	assert.True(t, errors.Is(err, ErrIVSize))

	d, err := c.NewDecrypter(make([]byte, 16), make([]byte, 16))
	require.NoError(t, err)
	_, err = d.Update(make([]byte, 32), make([]byte, 17))
	assert.True(t, errors.Is(err, ErrNotBlockAligned))
	_, err = d.Update(make([]byte, 8), make([]byte, 16))
	assert.True(t, errors.Is(err, ErrShortBuffer))
}

func cbcEncrypt(newBlock func([]byte) (cipher.Block, error)) func(key, iv, plain []byte) []byte {
	return func(key, iv, plain []byte) []byte {
		block, err := newBlock(key)
		if err != nil {
			panic(err)
		}
		out := make([]byte, len(plain))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plain)
		return out
	}
}
