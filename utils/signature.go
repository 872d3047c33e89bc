// utils/signature.go
package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var ErrInvalidInitData = errors.New("invalid telegram init data")

// ValidateInitData verifies a Telegram WebApp initData blob against the bot
// token and returns the parsed fields. The check string is every key=value
// pair except hash, sorted and newline-joined; the HMAC key is
// SHA256(botToken).
func ValidateInitData(initData, botToken string) (map[string]string, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrInvalidInitData
	}

	receivedHash := values.Get("hash")
	if receivedHash == "" {
		return nil, ErrInvalidInitData
	}
	values.Del("hash")

	pairs := make([]string, 0, len(values))
	parsed := make(map[string]string, len(values))
	for key := range values {
		value := values.Get(key)
		pairs = append(pairs, key+"="+value)
		parsed[key] = value
	}
	sort.Strings(pairs)
	checkString := strings.Join(pairs, "\n")

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(checkString))
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(receivedHash)) {
		return nil, ErrInvalidInitData
	}
	return parsed, nil
}

// PostbackSignature computes the expected HMAC-SHA256 signature over a
// postback's (subject, status, offer) triple.
func PostbackSignature(secret, sub1, status, offerID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%s:%s", sub1, status, offerID)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPostbackSignature compares a received signature in constant time.
func VerifyPostbackSignature(secret, sub1, status, offerID, signature string) bool {
	expected := PostbackSignature(secret, sub1, status, offerID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
