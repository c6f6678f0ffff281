package esp

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"
)

// MaxKeyHexLen caps key column length, in hex digits after the 0x prefix
const MaxKeyHexLen = 64

const flowColumns = 6

var columnNames = [flowColumns]string{"src", "dst", "cipher", "auth", "key", "spi"}

// Flow is a single line of the flow config, selecting decryption parameters for
// ESP packets between two hosts with a given SPI
type Flow struct {
	Src    netip.Addr
	Dst    netip.Addr
	SPI    uint32
	Cipher *CipherDescriptor
	Auth   *AuthDescriptor
	Key    []byte
	// Line in config where flow was defined
	Line int
}

func (f Flow) String() string {
	return fmt.Sprintf("%s -> %s spi 0x%08x %s/%s", f.Src, f.Dst, f.SPI, f.Cipher.Name, f.Auth.Name)
}

// Table is an ordered flow list. It is built once and then only read, so it can be
// shared between goroutines.
type Table struct {
	flows []*Flow
}

/*
LoadFile opens and parses a flow config. Caller can use errors.Is with
ErrConfigNotFound and ErrConfigMalformed to decide how to proceed.
*/
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Code: ErrCodeNotFound, Path: path, Err: err}
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		var cerr *ConfigError
		if errors.As(err, &cerr) {
			cerr.Path = path
		}
		return nil, err
	}
	return t, nil
}

/*
Load parses whitespace separated flow records, one per line:

	src_ip dst_ip cipher auth 0xkey 0xspi

Empty lines and lines starting with # are ignored.
*/
func Load(r io.Reader) (*Table, error) {
	t := &Table{flows: make([]*Flow, 0)}
	scanner := bufio.NewScanner(r)
	var lineNum int
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		flow, err := parseFlow(strings.Fields(line), lineNum)
		if err != nil {
			t.Close()
			return nil, err
		}
		t.flows = append(t.flows, flow)
	}
	if err := scanner.Err(); err != nil {
		t.Close()
		return nil, malformed(lineNum+1, "", err)
	}
	return t, nil
}

func parseFlow(cols []string, line int) (*Flow, error) {
	if len(cols) != flowColumns {
		return nil, malformed(line, "", fmt.Errorf("expected %d columns, got %d", flowColumns, len(cols)))
	}
	var (
		f   = &Flow{Line: line}
		err error
		ok  bool
	)
	if f.Src, err = netip.ParseAddr(cols[0]); err != nil {
		return nil, malformed(line, columnNames[0], err)
	}
	if f.Dst, err = netip.ParseAddr(cols[1]); err != nil {
		return nil, malformed(line, columnNames[1], err)
	}
	if f.Cipher, ok = FindCipher(cols[2]); !ok {
		return nil, malformed(line, columnNames[2], fmt.Errorf("unknown encryption method %s", cols[2]))
	}
	if f.Auth, ok = FindAuth(cols[3]); !ok {
		return nil, malformed(line, columnNames[3], fmt.Errorf("unknown authentication method %s", cols[3]))
	}
	if f.Key, err = parseKey(cols[4], f.Cipher); err != nil {
		return nil, malformed(line, columnNames[4], err)
	}
	if f.SPI, err = parseSPI(cols[5]); err != nil {
		wipe(f.Key)
		return nil, malformed(line, columnNames[5], err)
	}
	return f, nil
}

func trimHexPrefix(s string) (string, error) {
	if len(s) < 2 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return "", fmt.Errorf("%s lacks 0x prefix", s)
	}
	if len(s) == 2 {
		return "", errors.New("no digits after 0x prefix")
	}
	return s[2:], nil
}

// parseKey validates key digits for every cipher but keeps no bytes for null
// encryption, where key is only a placeholder
func parseKey(raw string, c *CipherDescriptor) ([]byte, error) {
	digits, err := trimHexPrefix(raw)
	if err != nil {
		return nil, err
	}
	if len(digits) > MaxKeyHexLen {
		return nil, fmt.Errorf("key has %d hex digits, max is %d", len(digits), MaxKeyHexLen)
	}
	key, err := hex.DecodeString(digits)
	if err != nil {
		return nil, err
	}
	if c.IsNull() {
		wipe(key)
		return nil, nil
	}
	if len(key) != c.KeySize {
		wipe(key)
		return nil, fmt.Errorf("%s needs a %d byte key, got %d", c.Name, c.KeySize, len(key))
	}
	return key, nil
}

func parseSPI(raw string) (uint32, error) {
	digits, err := trimHexPrefix(raw)
	if err != nil {
		return 0, err
	}
	spi, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(spi), nil
}

// Lookup returns the first flow matching all three fields. Nil table never matches.
func (t *Table) Lookup(src, dst netip.Addr, spi uint32) (*Flow, bool) {
	if t == nil {
		return nil, false
	}
	for _, f := range t.flows {
		if f.SPI == spi && f.Src == src && f.Dst == dst {
			return f, true
		}
	}
	return nil, false
}

// Len is the number of loaded flows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.flows)
}

// Flows exposes loaded flows in config order. Returned records must not be modified.
func (t *Table) Flows() []*Flow {
	if t == nil {
		return nil
	}
	return t.flows
}

// Close zeroes key material. Table must not be used afterwards.
func (t *Table) Close() {
	if t == nil {
		return
	}
	for _, f := range t.flows {
		wipe(f.Key)
		f.Key = nil
	}
	t.flows = nil
}
