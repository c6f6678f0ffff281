package esp

// CipherDescriptor maps a cipher name used in the flow config to a provider cipher
type CipherDescriptor struct {
	// Name as written in the flow config
	Name string
	// Provider is the cipher name resolved through Provider, empty for null encryption
	Provider string
	// KeySize in bytes, 0 for null encryption
	KeySize int
}

// IsNull reports if flow payload is sent in clear
func (c CipherDescriptor) IsNull() bool { return c.Provider == "" }

// AuthDescriptor describes an ESP authentication algorithm. Only the trailer length
// is used, integrity check values are skipped but never verified.
type AuthDescriptor struct {
	Name       string
	TrailerLen int
}

// IsNull reports if packets carry no authentication trailer
func (a AuthDescriptor) IsNull() bool { return a.TrailerLen == 0 }

var (
	NullCipher = &CipherDescriptor{Name: "null_enc"}
	NullAuth   = &AuthDescriptor{Name: "null_auth"}
)

var ciphers = []*CipherDescriptor{
	{Name: "des-cbc", Provider: "des-cbc", KeySize: 8},
	{Name: "3des-cbc", Provider: "des-ede3-cbc", KeySize: 24},
	{Name: "aes128-cbc", Provider: "aes-128-cbc", KeySize: 16},
	{Name: "aes192-cbc", Provider: "aes-192-cbc", KeySize: 24},
	{Name: "aes256-cbc", Provider: "aes-256-cbc", KeySize: 32},
	{Name: "aes128-ctr", Provider: "aes-128-ctr", KeySize: 16},
	NullCipher,
}

var auths = []*AuthDescriptor{
	{Name: "hmac_md5-96", TrailerLen: 12},
	{Name: "hmac_sha1-96", TrailerLen: 12},
	{Name: "aes_xcbc_mac-96", TrailerLen: 12},
	NullAuth,
	{Name: "any96", TrailerLen: 12},
	{Name: "any128", TrailerLen: 16},
	{Name: "any160", TrailerLen: 20},
	{Name: "any192", TrailerLen: 24},
	{Name: "any256", TrailerLen: 32},
	{Name: "any384", TrailerLen: 48},
	{Name: "any512", TrailerLen: 64},
}

// FindCipher looks up a cipher by config name
func FindCipher(name string) (*CipherDescriptor, bool) {
	for _, c := range ciphers {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// FindAuth looks up an authentication algorithm by config name
func FindAuth(name string) (*AuthDescriptor, bool) {
	for _, a := range auths {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Ciphers lists supported encryption algorithms in catalog order
func Ciphers() []CipherDescriptor {
	tx := make([]CipherDescriptor, 0, len(ciphers))
	for _, c := range ciphers {
		tx = append(tx, *c)
	}
	return tx
}

// Auths lists supported authentication algorithms in catalog order
func Auths() []AuthDescriptor {
	tx := make([]AuthDescriptor, 0, len(auths))
	for _, a := range auths {
		tx = append(tx, *a)
	}
	return tx
}
