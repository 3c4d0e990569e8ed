package webhook

import (
	"crypto/subtle"
	"errors"
	"net/url"

	"github.com/grwebhook/grwebhook/pkg/sale"
)

// Older integrations were configured by pasting the shell export line, so it is accepted as a secret too.
const exportPrefix = "export SECRET_KEY="

var ErrAuthentication = errors.New("please authenticate")

type Authenticator struct {
	accepted [][]byte
}

func NewAuthenticator(secret string) *Authenticator {
	authenticator := &Authenticator{}
	if secret != "" {
		authenticator.accepted = [][]byte{
			[]byte(secret),
			[]byte(exportPrefix + secret),
		}
	}
	return authenticator
}

// Checks the Secret_Key parameter, read from the query string first and the form body second.
func (authenticator *Authenticator) Authenticate(query url.Values, payload sale.Payload) error {
	candidate := query.Get(sale.FieldSecretKey)
	if candidate == "" {
		value, ok, err := payload.Single(sale.FieldSecretKey)
		if err != nil || !ok {
			return ErrAuthentication
		}
		candidate = value
	}

	for _, accepted := range authenticator.accepted {
		if subtle.ConstantTimeCompare([]byte(candidate), accepted) == 1 {
			return nil
		}
	}

	return ErrAuthentication
}
