package keystore_test

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/satchel/internal/keystore"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testKey      = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

func TestMain(m *testing.M) {
	keystore.SetScryptWorkFactor(1<<4, 1)
	os.Exit(m.Run())
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		secret   string
		password string
	}{
		{"mnemonic", testMnemonic, "hunter22"},
		{"private key", testKey, "p@ssw0rd!"},
		{"unicode password", testKey, "пароль-密码"},
		{"empty password", testMnemonic, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := keystore.Encrypt([]byte(tt.secret), tt.password, keystore.WithName("alice"))
			require.NoError(t, err)
			assert.Equal(t, keystore.Version, c.Version)
			assert.Equal(t, "alice", c.Name)
			assert.NotEmpty(t, c.ID)

			plain, err := keystore.Decrypt(c, tt.password)
			require.NoError(t, err)
			assert.Equal(t, tt.secret, string(plain))
		})
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	t.Parallel()

	c, err := keystore.Encrypt([]byte(testMnemonic), "correct-password")
	require.NoError(t, err)

	for _, wrong := range []string{"wrong-password", "", "correct-passwore", "correct-password "} {
		plain, err := keystore.Decrypt(c, wrong)
		require.ErrorIs(t, err, satchelerr.ErrWrongPassword, "password %q", wrong)
		assert.Nil(t, plain)
	}
}

func TestEncryptIsFresh(t *testing.T) {
	t.Parallel()

	a, err := keystore.Encrypt([]byte(testKey), "hunter22")
	require.NoError(t, err)
	b, err := keystore.Encrypt([]byte(testKey), "hunter22")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Crypto.CipherParams.IV, b.Crypto.CipherParams.IV)
	assert.NotEqual(t, a.Crypto.KDFParams["salt"], b.Crypto.KDFParams["salt"])
	assert.NotEqual(t, a.Crypto.CipherText, b.Crypto.CipherText)
	assert.NotEqual(t, a.Crypto.MAC, b.Crypto.MAC)
}

func TestEncryptRejectsEmptySecret(t *testing.T) {
	t.Parallel()

	_, err := keystore.Encrypt(nil, "hunter22")
	require.ErrorIs(t, err, satchelerr.ErrInvalidSecret)
}

func TestEncryptRejectsBadWorkFactor(t *testing.T) {
	t.Parallel()

	_, err := keystore.Encrypt([]byte(testKey), "hunter22", keystore.WithWorkFactor(1000, 1))
	require.ErrorIs(t, err, satchelerr.ErrConfigInvalid)
}

func TestParseMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := keystore.Encrypt([]byte(testMnemonic), "hunter22", keystore.WithName("bob"))
	require.NoError(t, err)

	data, err := c.Marshal()
	require.NoError(t, err)

	parsed, err := keystore.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, c.ID, parsed.ID)
	assert.Equal(t, "bob", parsed.Name)

	plain, err := keystore.Decrypt(parsed, "hunter22")
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, string(plain))
}

// Tampered ciphertext fails the MAC, which is indistinguishable from a wrong
// password by design of the format.
func TestTamperedCiphertextFailsMAC(t *testing.T) {
	t.Parallel()

	c, err := keystore.Encrypt([]byte(testKey), "hunter22")
	require.NoError(t, err)

	ct := []byte(c.Crypto.CipherText)
	if ct[0] == 'a' {
		ct[0] = 'b'
	} else {
		ct[0] = 'a'
	}
	c.Crypto.CipherText = string(ct)

	_, err = keystore.Decrypt(c, "hunter22")
	require.ErrorIs(t, err, satchelerr.ErrWrongPassword)
}

func TestCorruptContainers(t *testing.T) {
	t.Parallel()

	base, err := keystore.Encrypt([]byte(testKey), "hunter22")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(m map[string]any)
	}{
		{"wrong version", func(m map[string]any) { m["version"] = 1 }},
		{"unknown cipher", func(m map[string]any) { cryptoOf(m)["cipher"] = "aes-256-gcm" }},
		{"mac not hex", func(m map[string]any) { cryptoOf(m)["mac"] = "zz" }},
		{"short mac", func(m map[string]any) { cryptoOf(m)["mac"] = "abcd" }},
		{"iv wrong length", func(m map[string]any) {
			cryptoOf(m)["cipherparams"] = map[string]any{"iv": "00ff"}
		}},
		{"ciphertext not hex", func(m map[string]any) { cryptoOf(m)["ciphertext"] = "xyz" }},
		{"unknown kdf", func(m map[string]any) { cryptoOf(m)["kdf"] = "argon2id" }},
		{"missing n", func(m map[string]any) { delete(kdfParamsOf(m), "n") }},
		{"n not power of two", func(m map[string]any) { kdfParamsOf(m)["n"] = 1000 }},
		{"n too large", func(m map[string]any) { kdfParamsOf(m)["n"] = 1 << 30 }},
		{"missing salt", func(m map[string]any) { delete(kdfParamsOf(m), "salt") }},
		{"short dklen", func(m map[string]any) { kdfParamsOf(m)["dklen"] = 16 }},
		{"zero r", func(m map[string]any) { kdfParamsOf(m)["r"] = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := mutate(t, base, tt.mutate)

			_, err := keystore.Parse(data)
			require.ErrorIs(t, err, satchelerr.ErrKeystoreCorrupt)

			var c keystore.Container
			if json.Unmarshal(data, &c) == nil {
				_, err = keystore.Decrypt(&c, "hunter22")
				require.ErrorIs(t, err, satchelerr.ErrKeystoreCorrupt)
			}
		})
	}
}

func TestParseGarbage(t *testing.T) {
	t.Parallel()

	_, err := keystore.Parse([]byte("{not json"))
	require.ErrorIs(t, err, satchelerr.ErrKeystoreCorrupt)

	_, err = keystore.Decrypt(nil, "x")
	require.ErrorIs(t, err, satchelerr.ErrKeystoreCorrupt)
}

// Published Web3 Secret Storage PBKDF2 test vector.
func TestDecryptPBKDF2Vector(t *testing.T) {
	t.Parallel()

	vector := `{
		"crypto": {
			"cipher": "aes-128-ctr",
			"cipherparams": {"iv": "6087dab2f9fdbbfaddc31a909735c1e6"},
			"ciphertext": "5318b4d5bcd28de64ee5559e671353e16f075ecae9f99c7a79a38af5f869aa46",
			"kdf": "pbkdf2",
			"kdfparams": {
				"c": 262144,
				"dklen": 32,
				"prf": "hmac-sha256",
				"salt": "ae3cd4e7013836a3df6bd7241b12db061dbe2c6785853cce422d148a624ce0bd"
			},
			"mac": "517ead924a9d0dc3124507e3393d175ce3ff7c1e96529c6c555ce9e51205e9b2"
		},
		"id": "3198bc9c-6672-5ab3-d995-4942343ae5b6",
		"version": 3
	}`

	c, err := keystore.Parse([]byte(vector))
	require.NoError(t, err)

	plain, err := keystore.Decrypt(c, "testpassword")
	require.NoError(t, err)
	assert.Equal(t, "7a28b5ba57c53603b0b07b56bba752f7784bf506fa95edc395f5cf6c7514fe9d", hex.EncodeToString(plain))

	_, err = keystore.Decrypt(c, "not-the-password")
	require.ErrorIs(t, err, satchelerr.ErrWrongPassword)
}

func mutate(t *testing.T, c *keystore.Container, fn func(map[string]any)) []byte {
	t.Helper()

	data, err := c.Marshal()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	fn(m)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	return out
}

func cryptoOf(m map[string]any) map[string]any {
	return m["crypto"].(map[string]any)
}

func kdfParamsOf(m map[string]any) map[string]any {
	return cryptoOf(m)["kdfparams"].(map[string]any)
}
