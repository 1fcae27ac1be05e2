package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

// GenerateAuthToken signs operator with secretKey. The token is sent as a
// bearer token or in the auth cookie.
func GenerateAuthToken(operator, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(operator))
	signature := mac.Sum(nil)
	token := base64.StdEncoding.EncodeToString([]byte(operator)) + "|" + base64.StdEncoding.EncodeToString(signature)
	return token
}

// operatorFromToken returns the signed operator name, or false when the
// token was not signed with secretKey.
func operatorFromToken(token, secretKey string) (string, bool) {
	parts := strings.Split(token, "|")
	if len(parts) != 2 {
		return "", false
	}
	operatorBytes, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	expectedMac, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", false
	}

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write(operatorBytes)
	calculatedMac := mac.Sum(nil)

	if !hmac.Equal(expectedMac, calculatedMac) {
		return "", false
	}
	return string(operatorBytes), true
}

func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := r.Cookie("auth"); err == nil {
		return cookie.Value
	}
	return ""
}
