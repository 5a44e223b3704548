package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// verifySignature checks the Mercado Pago x-signature header, which has the
// form "ts=<unix>,v1=<hex hmac-sha256>" over the manifest
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func verifySignature(secret, dataID string, header http.Header) error {
	raw := header.Get(HeaderSignature)
	if raw == "" {
		return fmt.Errorf("%w: missing %s", ErrUnauthenticated, HeaderSignature)
	}

	var ts, v1 string
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return fmt.Errorf("%w: incomplete signature", ErrUnauthenticated)
	}

	want := Sign(secret, dataID, header.Get(HeaderRequestID), ts)
	if !hmac.Equal([]byte(strings.ToLower(v1)), []byte(want)) {
		return fmt.Errorf("%w: signature mismatch", ErrUnauthenticated)
	}
	return nil
}

// Sign computes the v1 signature for a notification.
func Sign(secret, dataID, requestID, ts string) string {
	var manifest strings.Builder
	manifest.WriteString("id:" + strings.ToLower(dataID) + ";")
	if requestID != "" {
		manifest.WriteString("request-id:" + requestID + ";")
	}
	manifest.WriteString("ts:" + ts + ";")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
