package hanchu

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAESEncryptBody(t *testing.T) {
	assert := assert.New(t)

	body, err := aesEncryptBody([]byte(`{"sn":"HESI30TEST001"}`))
	assert.NoError(err)

	ct, err := base64.StdEncoding.DecodeString(body)
	assert.NoError(err)
	assert.Equal(0, len(ct)%16, "ciphertext is block aligned")

	// fixed key and IV, so encryption is deterministic
	body2, err := aesEncryptBody([]byte(`{"sn":"HESI30TEST001"}`))
	assert.NoError(err)
	assert.Equal(body, body2)
}

func TestPKCS7Pad(t *testing.T) {
	assert := assert.New(t)

	padded := pkcs7Pad([]byte("12345"), 16)
	assert.Equal(16, len(padded))
	assert.Equal(byte(11), padded[15])

	// full block input gets a whole padding block
	padded = pkcs7Pad(make([]byte, 16), 16)
	assert.Equal(32, len(padded))
	assert.Equal(byte(16), padded[31])
}

func TestRSAEncryptPassword(t *testing.T) {
	assert := assert.New(t)

	enc, err := rsaEncryptPassword("secret")
	assert.NoError(err)

	ct, err := base64.StdEncoding.DecodeString(enc)
	assert.NoError(err)
	// 1024-bit vendor key
	assert.Equal(128, len(ct))
}
