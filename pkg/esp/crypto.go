package esp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"errors"
	"fmt"
)

var (
	ErrUnknownCipher   = errors.New("unknown provider cipher")
	ErrKeySize         = errors.New("invalid key size")
	ErrIVSize          = errors.New("invalid iv size")
	ErrNotBlockAligned = errors.New("input not a multiple of block size")
	ErrShortBuffer     = errors.New("output buffer too small")
	ErrDecrypterReset  = errors.New("decrypter already reset")
)

// Provider resolves cipher implementations by provider name
type Provider interface {
	Cipher(name string) (Cipher, error)
}

// Cipher is a provider level cipher handle
type Cipher interface {
	Name() string
	BlockSize() int
	IVSize() int
	KeySize() int
	// NewDecrypter sets up a fresh decryption context for a single packet
	NewDecrypter(key, iv []byte) (Decrypter, error)
}

// Decrypter is a streaming decryption context. Update may be called any number of
// times, Final flushes whatever the implementation still buffers. Reset wipes
// per-packet state, the Decrypter must not be used afterwards.
type Decrypter interface {
	Update(dst, src []byte) (int, error)
	Final(dst []byte) (int, error)
	Reset()
}

// DefaultProvider is backed by the Go standard crypto packages
var DefaultProvider Provider = stdProvider{}

type stdProvider struct{}

func (stdProvider) Cipher(name string) (Cipher, error) {
	c, ok := stdCiphers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCipher, name)
	}
	return c, nil
}

type stdCipher struct {
	name      string
	keySize   int
	blockSize int
	ivSize    int
	ctr       bool
	newBlock  func([]byte) (cipher.Block, error)
}

// CTR mode keeps the AES block size so that pad length sanity check stays meaningful
var stdCiphers = map[string]stdCipher{
	"des-cbc":      {name: "des-cbc", keySize: 8, blockSize: des.BlockSize, ivSize: des.BlockSize, newBlock: des.NewCipher},
	"des-ede3-cbc": {name: "des-ede3-cbc", keySize: 24, blockSize: des.BlockSize, ivSize: des.BlockSize, newBlock: des.NewTripleDESCipher},
	"aes-128-cbc":  {name: "aes-128-cbc", keySize: 16, blockSize: aes.BlockSize, ivSize: aes.BlockSize, newBlock: aes.NewCipher},
	"aes-192-cbc":  {name: "aes-192-cbc", keySize: 24, blockSize: aes.BlockSize, ivSize: aes.BlockSize, newBlock: aes.NewCipher},
	"aes-256-cbc":  {name: "aes-256-cbc", keySize: 32, blockSize: aes.BlockSize, ivSize: aes.BlockSize, newBlock: aes.NewCipher},
	"aes-128-ctr":  {name: "aes-128-ctr", keySize: 16, blockSize: aes.BlockSize, ivSize: aes.BlockSize, ctr: true, newBlock: aes.NewCipher},
}

func (c stdCipher) Name() string   { return c.name }
func (c stdCipher) BlockSize() int { return c.blockSize }
func (c stdCipher) IVSize() int    { return c.ivSize }
func (c stdCipher) KeySize() int   { return c.keySize }

func (c stdCipher) NewDecrypter(key, iv []byte) (Decrypter, error) {
	if len(key) != c.keySize {
		return nil, fmt.Errorf("%w: %s wants %d bytes, got %d", ErrKeySize, c.name, c.keySize, len(key))
	}
	if len(iv) != c.ivSize {
		return nil, fmt.Errorf("%w: %s wants %d bytes, got %d", ErrIVSize, c.name, c.ivSize, len(iv))
	}
	block, err := c.newBlock(key)
	if err != nil {
		return nil, err
	}
	d := &stdDecrypter{iv: make([]byte, len(iv)), blockSize: c.blockSize}
	copy(d.iv, iv)
	if c.ctr {
		d.stream = cipher.NewCTR(block, d.iv)
	} else {
		d.mode = cipher.NewCBCDecrypter(block, d.iv)
	}
	return d, nil
}

type stdDecrypter struct {
	iv        []byte
	blockSize int
	mode      cipher.BlockMode
	stream    cipher.Stream
}

func (d *stdDecrypter) Update(dst, src []byte) (int, error) {
	if len(dst) < len(src) {
		return 0, ErrShortBuffer
	}
	switch {
	case d.stream != nil:
		d.stream.XORKeyStream(dst[:len(src)], src)
	case d.mode != nil:
		if len(src)%d.blockSize != 0 {
			return 0, fmt.Errorf("%w: %d bytes, block %d", ErrNotBlockAligned, len(src), d.blockSize)
		}
		d.mode.CryptBlocks(dst[:len(src)], src)
	default:
		return 0, ErrDecrypterReset
	}
	return len(src), nil
}

// Final never emits data, Update already flushed every complete block and ESP
// carries its own padding which is not stripped here
func (d *stdDecrypter) Final(dst []byte) (int, error) {
	if d.stream == nil && d.mode == nil {
		return 0, ErrDecrypterReset
	}
	return 0, nil
}

func (d *stdDecrypter) Reset() {
	wipe(d.iv)
	d.mode = nil
	d.stream = nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
