package gateway

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"campusnest/internal/domain"
)

// Signer produces and checks the md5 signatures used on every message.
// Outbound requests are signed with password1, callbacks with password2.
type Signer struct {
	merchant  string
	password1 string
	password2 string
}

func NewSigner(merchant, password1, password2 string) *Signer {
	return &Signer{merchant: merchant, password1: password1, password2: password2}
}

func (s *Signer) Merchant() string { return s.merchant }

func (s *Signer) RequestSignature(amount, reference string, shp map[string]string) string {
	parts := []string{s.merchant, amount, reference, s.password1}
	parts = append(parts, flattenShpParams(shp)...)
	return md5Hex(strings.Join(parts, ":"))
}

func (s *Signer) CallbackSignature(amount, reference, status string, shp map[string]string) string {
	parts := []string{amount, reference}
	if status != "" {
		parts = append(parts, status)
	}
	parts = append(parts, s.password2)
	parts = append(parts, flattenShpParams(shp)...)
	return md5Hex(strings.Join(parts, ":"))
}

// Callback is a verified notification from the processor.
type Callback struct {
	Reference string
	Amount    int64
	Status    domain.GatewayStatus
	Reason    string
	Shp       map[string]string
	RawBody   string
}

// Verify checks the signature on form values and decodes them.
func (s *Signer) Verify(form url.Values, rawBody string) (*Callback, error) {
	amountRaw := strings.TrimSpace(form.Get("OutSum"))
	ref := strings.TrimSpace(form.Get("InvId"))
	sig := strings.TrimSpace(form.Get("SignatureValue"))
	if amountRaw == "" || ref == "" || sig == "" {
		return nil, ErrMalformed
	}

	status := strings.TrimSpace(form.Get("Status"))
	shp := ExtractShpParams(form)
	if !strings.EqualFold(sig, s.CallbackSignature(amountRaw, ref, status, shp)) {
		return nil, ErrInvalidSignature
	}

	amount, err := ParseAmount(amountRaw)
	if err != nil {
		return nil, err
	}
	gs, err := parseStatus(status)
	if err != nil {
		return nil, err
	}
	return &Callback{
		Reference: ref,
		Amount:    amount,
		Status:    gs,
		Reason:    strings.TrimSpace(form.Get("Reason")),
		Shp:       shp,
		RawBody:   rawBody,
	}, nil
}

func ExtractShpParams(values url.Values) map[string]string {
	out := map[string]string{}
	for k, v := range values {
		if strings.HasPrefix(k, "Shp_") && len(v) > 0 {
			out[strings.TrimPrefix(k, "Shp_")] = v[0]
		}
	}
	return out
}

func flattenShpParams(shp map[string]string) []string {
	keys := make([]string, 0, len(shp))
	for k := range shp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, "Shp_"+k+"="+shp[k])
	}
	return out
}

func md5Hex(s string) string {
	h := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(h[:]))
}
