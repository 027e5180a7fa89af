package helpers

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// ProviderHash computes the seamless-callback checksum: request parameters
// sorted by key, concatenated as key=value pairs joined with &, with the
// shared secret appended. The hash parameter itself is never part of the
// digest.
func ProviderHash(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := md5.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

// VerifyProviderHash compares the caller-supplied hash against the computed
// one, case-insensitively.
func VerifyProviderHash(params map[string]string, secret, given string) bool {
	return strings.EqualFold(ProviderHash(params, secret), given)
}
