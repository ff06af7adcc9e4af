package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"campusnest/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedCallback(s *Signer, amount, ref, status string, shp map[string]string) url.Values {
	form := url.Values{}
	form.Set("OutSum", amount)
	form.Set("InvId", ref)
	if status != "" {
		form.Set("Status", status)
	}
	for k, v := range shp {
		form.Set("Shp_"+k, v)
	}
	form.Set("SignatureValue", s.CallbackSignature(amount, ref, status, shp))
	return form
}

func TestParseAmount(t *testing.T) {
	for in, want := range map[string]int64{"105000": 105000, "105000.00": 105000, " 104999.000000 ": 104999} {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "abc", "10.5", "1e40"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrMalformed, bad)
	}
	assert.Equal(t, "105000.00", FormatAmount(105000))
}

func TestSignerVerify(t *testing.T) {
	s := NewSigner("campusnest", "p1", "p2")
	form := signedCallback(s, "105000.00", "PAY-1", "", map[string]string{"booking": "CN-2026-000001"})

	cb, err := s.Verify(form, form.Encode())
	require.NoError(t, err)
	assert.Equal(t, "PAY-1", cb.Reference)
	assert.Equal(t, int64(105000), cb.Amount)
	assert.Equal(t, domain.GatewaySucceeded, cb.Status)
	assert.Equal(t, "CN-2026-000001", cb.Shp["booking"])

	failed := signedCallback(s, "105000.00", "PAY-1", "fail", nil)
	cb, err = s.Verify(failed, "")
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayFailed, cb.Status)
}

func TestSignerVerify_Rejects(t *testing.T) {
	s := NewSigner("campusnest", "p1", "p2")

	form := signedCallback(s, "105000.00", "PAY-1", "", nil)
	form.Set("OutSum", "1.00")
	_, err := s.Verify(form, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	forged := signedCallback(NewSigner("campusnest", "p1", "other"), "105000.00", "PAY-1", "", nil)
	_, err = s.Verify(forged, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = s.Verify(url.Values{"InvId": {"PAY-1"}}, "")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestHTTPClient_Charge(t *testing.T) {
	signer := NewSigner("campusnest", "p1", "p2")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/charge", r.URL.Path)
		assert.Equal(t, "campusnest", r.PostForm.Get("MerchantLogin"))
		want := signer.RequestSignature(r.PostForm.Get("OutSum"), r.PostForm.Get("InvId"), ExtractShpParams(r.PostForm))
		assert.Equal(t, want, r.PostForm.Get("SignatureValue"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"pending","payment_url":"https://pay.example/PAY-1"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, signer, time.Second, true, nil)
	res, err := c.Charge(context.Background(), ChargeRequest{Reference: "PAY-1", Amount: 105000, Booking: "CN-2026-000001"})
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayPending, res.Status)
	assert.Equal(t, "https://pay.example/PAY-1", res.PaymentURL)
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPClient(srv.URL, NewSigner("m", "p1", "p2"), 50*time.Millisecond, false, nil)
	_, err := c.Charge(context.Background(), ChargeRequest{Reference: "PAY-1", Amount: 100})
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
}

func TestHTTPClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, NewSigner("m", "p1", "p2"), time.Second, false, nil)
	_, err := c.Status(context.Background(), "PAY-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}
