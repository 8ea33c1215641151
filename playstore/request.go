package playstore

import (
	"context"
	"net/url"
)

// DefaultAuthURL is the authentication endpoint the form is posted to.
const DefaultAuthURL = "https://android.clients.google.com/auth"

const (
	defaultService    = "androidmarket"
	defaultSource     = "android"
	defaultSDKVersion = "23"
)

// Transport is the only network capability the dispenser requires:
// send one form request, return status and body. A nil form means no
// body (key fetches are plain GETs). Implementations own pooling, TLS
// and timeouts; api.Client satisfies this.
type Transport interface {
	Send(ctx context.Context, method, endpoint string, form url.Values) (int, []byte, error)
}

// DeviceParams are the plaintext form fields describing the calling
// device. Zero-value fields fall back to the protocol defaults or, for
// the optional ones, are omitted from the form entirely — the remote
// service distinguishes absence from empty.
type DeviceParams struct {
	Service         string
	Source          string
	SDKVersion      string
	AndroidID       string
	DeviceCountry   string
	OperatorCountry string
}

func buildAuthForm(identifier, encryptedCredential string, p DeviceParams) url.Values {

	form := url.Values{}
	form.Set("Email", identifier)
	form.Set("EncryptedPasswd", encryptedCredential)
	form.Set("service", orDefault(p.Service, defaultService))
	form.Set("source", orDefault(p.Source, defaultSource))
	form.Set("sdk_version", orDefault(p.SDKVersion, defaultSDKVersion))

	if p.AndroidID != "" {
		form.Set("androidId", p.AndroidID)
	}
	if p.DeviceCountry != "" {
		form.Set("device_country", p.DeviceCountry)
	}
	if p.OperatorCountry != "" {
		form.Set("operatorCountry", p.OperatorCountry)
	}

	return form
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
