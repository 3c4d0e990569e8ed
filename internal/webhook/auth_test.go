package webhook

import (
	"net/url"
	"testing"

	"github.com/grwebhook/grwebhook/pkg/sale"
	"github.com/stretchr/testify/assert"
)

func TestAuthenticate(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	cases := []struct {
		name    string
		query   url.Values
		payload sale.Payload
		err     error
	}{
		{"bare secret in body", url.Values{}, sale.Payload{"Secret_Key": {testSecret}}, nil},
		{"export form in body", url.Values{}, sale.Payload{"Secret_Key": {"export SECRET_KEY=" + testSecret}}, nil},
		{"secret in query", url.Values{"Secret_Key": {testSecret}}, nil, nil},
		{"query wins over body", url.Values{"Secret_Key": {"guess"}}, sale.Payload{"Secret_Key": {testSecret}}, ErrAuthentication},
		{"wrong secret", url.Values{}, sale.Payload{"Secret_Key": {"guess"}}, ErrAuthentication},
		{"prefix only", url.Values{}, sale.Payload{"Secret_Key": {"export SECRET_KEY="}}, ErrAuthentication},
		{"case differs", url.Values{}, sale.Payload{"Secret_Key": {"S3CRET"}}, ErrAuthentication},
		{"missing", url.Values{}, sale.Payload{}, ErrAuthentication},
		{"repeated", url.Values{}, sale.Payload{"Secret_Key": {testSecret, testSecret}}, ErrAuthentication},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.err, auth.Authenticate(c.query, c.payload))
		})
	}
}

func TestAuthenticateWithoutConfiguredSecret(t *testing.T) {
	auth := NewAuthenticator("")

	assert.ErrorIs(t, auth.Authenticate(url.Values{}, sale.Payload{}), ErrAuthentication)
	assert.ErrorIs(t, auth.Authenticate(url.Values{}, sale.Payload{"Secret_Key": {"export SECRET_KEY="}}), ErrAuthentication)
}
