package gdax

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
)

// sign 构建 CB-ACCESS-SIGN：base64(HMAC-SHA256(secret, timestamp + method + requestPath + body))
func sign(secret []byte, timestamp int64, method, requestPath, body string) string {
	message := strconv.FormatInt(timestamp, 10) + method + requestPath + body
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Client) authHeaders(method, requestPath, body string) map[string]string {
	ts := c.now().Unix()
	return map[string]string{
		"CB-ACCESS-KEY":        c.apiKey,
		"CB-ACCESS-SIGN":       sign(c.secret, ts, method, requestPath, body),
		"CB-ACCESS-TIMESTAMP":  strconv.FormatInt(ts, 10),
		"CB-ACCESS-PASSPHRASE": c.passphrase,
	}
}
