package helpers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderHashIsOrderIndependent(t *testing.T) {
	a := map[string]string{"providerId": "pp", "userId": "u1", "amount": "10"}
	b := map[string]string{"amount": "10", "userId": "u1", "providerId": "pp"}
	assert.Equal(t, ProviderHash(a, "secret"), ProviderHash(b, "secret"))
}

func TestProviderHashExcludesHashParam(t *testing.T) {
	params := map[string]string{"providerId": "pp", "userId": "u1"}
	want := ProviderHash(params, "secret")
	params["hash"] = "whatever"
	assert.Equal(t, want, ProviderHash(params, "secret"))
}

func TestVerifyProviderHash(t *testing.T) {
	params := map[string]string{"providerId": "pp", "userId": "u1", "amount": "10"}
	digest := ProviderHash(params, "secret")
	assert.True(t, VerifyProviderHash(params, "secret", digest))
	assert.False(t, VerifyProviderHash(params, "secret", "deadbeef"))

	// Case-insensitive compare on the digest.
	assert.True(t, VerifyProviderHash(params, "secret", strings.ToUpper(digest)))
}
