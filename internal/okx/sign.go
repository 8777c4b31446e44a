// Package okx реализует обмен с биржей OKX: REST-каталог инструментов,
// публичные и приватные WebSocket каналы, выставление ордеров.
package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// loginPath - фиксированный путь, участвующий в подписи WebSocket логина.
const loginPath = "/users/self/verify"

// Sign строит подпись приватного WebSocket логина:
// base64(HMAC-SHA256(secret, timestamp + "GET" + "/users/self/verify")).
func Sign(secret, timestamp string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp + "GET" + loginPath))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// LoginTimestamp возвращает текущее время в секундах Unix строкой -
// формат, который OKX ожидает в поле timestamp логина.
func LoginTimestamp() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

// Credentials - ключи доступа к приватным каналам.
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// LoginRequest строит сообщение логина для приватного WebSocket.
func LoginRequest(creds Credentials, timestamp string) map[string]interface{} {
	return map[string]interface{}{
		"op": "login",
		"args": []map[string]string{{
			"apiKey":     creds.APIKey,
			"passphrase": creds.Passphrase,
			"timestamp":  timestamp,
			"sign":       Sign(creds.Secret, timestamp),
		}},
	}
}
