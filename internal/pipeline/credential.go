package pipeline

import (
	"encoding/json"
	"net/http"

	"github.com/apiconduit/conduit/internal/connector"
)

// defaultAPIKeyHeader is used when the secret does not name one.
const defaultAPIKeyHeader = "X-Api-Key"

// credential is the decrypted upstream auth material for one request.
// It lives only for the duration of the proxied call and is never
// logged or relayed back to the caller.
type credential struct {
	kind connector.AuthKind

	// api-key / custom
	header string
	value  string

	// basic
	username string
	password string
}

// secretPayload is the JSON shape of a decrypted connector secret.
// Plain (non-JSON) plaintexts are treated as the bare value/token.
type secretPayload struct {
	Header   string `json:"header"`
	Value    string `json:"value"`
	Token    string `json:"token"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// parseCredential maps decrypted secret plaintext onto the connector's
// auth kind.
func parseCredential(kind connector.AuthKind, plaintext []byte) *credential {
	var payload secretPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		payload = secretPayload{Value: string(plaintext), Token: string(plaintext)}
	}

	cred := &credential{kind: kind}
	switch kind {
	case connector.AuthAPIKey:
		cred.header = payload.Header
		if cred.header == "" {
			cred.header = defaultAPIKeyHeader
		}
		cred.value = payload.Value
		if cred.value == "" {
			cred.value = payload.Token
		}
	case connector.AuthBearer, connector.AuthOAuth2:
		cred.value = payload.Token
		if cred.value == "" {
			cred.value = payload.Value
		}
	case connector.AuthBasic:
		cred.username = payload.Username
		cred.password = payload.Password
	case connector.AuthCustom:
		cred.header = payload.Header
		if cred.header == "" {
			cred.header = "Authorization"
		}
		cred.value = payload.Value
	}
	return cred
}

// apply injects the credential into the outgoing request.
func (c *credential) apply(req *http.Request) {
	if c == nil {
		return
	}
	switch c.kind {
	case connector.AuthAPIKey, connector.AuthCustom:
		req.Header.Set(c.header, c.value)
	case connector.AuthBearer, connector.AuthOAuth2:
		req.Header.Set("Authorization", "Bearer "+c.value)
	case connector.AuthBasic:
		req.SetBasicAuth(c.username, c.password)
	}
}
