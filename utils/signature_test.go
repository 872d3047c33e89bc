package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

// signInitData builds a valid initData blob the way Telegram does, so the
// validator is checked against the documented scheme rather than itself.
func signInitData(fields map[string]string, botToken string) string {
	pairs := make([]string, 0, len(fields))
	for k, v := range fields {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(pairs, "\n")))
	hash := hex.EncodeToString(mac.Sum(nil))

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", hash)
	return values.Encode()
}

func TestValidateInitData(t *testing.T) {
	fields := map[string]string{
		"auth_date": "1724800000",
		"query_id":  "AAH9mQ",
		"user":      `{"id":100,"username":"alice"}`,
	}
	initData := signInitData(fields, testBotToken)

	parsed, err := ValidateInitData(initData, testBotToken)
	require.NoError(t, err)
	assert.Equal(t, fields["user"], parsed["user"])
	assert.Equal(t, fields["auth_date"], parsed["auth_date"])
}

func TestValidateInitDataRejectsTampering(t *testing.T) {
	fields := map[string]string{
		"auth_date": "1724800000",
		"user":      `{"id":100,"username":"alice"}`,
	}
	initData := signInitData(fields, testBotToken)

	// Signed with a different bot token.
	_, err := ValidateInitData(initData, "other-token")
	assert.ErrorIs(t, err, ErrInvalidInitData)

	// Payload changed after signing.
	tampered := strings.Replace(initData, "alice", "mallory", 1)
	_, err = ValidateInitData(tampered, testBotToken)
	assert.ErrorIs(t, err, ErrInvalidInitData)

	// No hash at all.
	_, err = ValidateInitData("auth_date=1724800000&user=x", testBotToken)
	assert.ErrorIs(t, err, ErrInvalidInitData)

	// Not even a query string.
	_, err = ValidateInitData("%zz", testBotToken)
	assert.ErrorIs(t, err, ErrInvalidInitData)
}

func TestPostbackSignature(t *testing.T) {
	secret := "postback-secret"
	sig := PostbackSignature(secret, "100", "deposit", "offer-1")

	assert.True(t, VerifyPostbackSignature(secret, "100", "deposit", "offer-1", sig))

	// Any field change invalidates the signature.
	assert.False(t, VerifyPostbackSignature(secret, "101", "deposit", "offer-1", sig))
	assert.False(t, VerifyPostbackSignature(secret, "100", "install", "offer-1", sig))
	assert.False(t, VerifyPostbackSignature(secret, "100", "deposit", "offer-2", sig))
	assert.False(t, VerifyPostbackSignature("wrong", "100", "deposit", "offer-1", sig))
	assert.False(t, VerifyPostbackSignature(secret, "100", "deposit", "offer-1", ""))
}
