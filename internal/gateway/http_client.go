package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type HTTPClient struct {
	baseURL string
	signer  *Signer
	isTest  bool
	http    *http.Client
	loggerf func(format string, args ...interface{})
}

func NewHTTPClient(baseURL string, signer *Signer, timeout time.Duration, isTest bool, loggerf func(format string, args ...interface{})) *HTTPClient {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		isTest:  isTest,
		http:    &http.Client{Timeout: timeout},
		loggerf: loggerf,
	}
}

type gatewayReply struct {
	Reference  string `json:"reference"`
	Status     string `json:"status"`
	PaymentURL string `json:"payment_url"`
	Amount     string `json:"amount"`
	Reason     string `json:"reason"`
}

func (c *HTTPClient) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	amount := FormatAmount(req.Amount)
	shp := map[string]string{}
	if req.Booking != "" {
		shp["booking"] = req.Booking
	}

	form := url.Values{}
	form.Set("OutSum", amount)
	form.Set("InvId", req.Reference)
	form.Set("Description", req.Description)
	if req.PayerContact != "" {
		form.Set("Email", req.PayerContact)
	}
	for k, v := range shp {
		form.Set("Shp_"+k, v)
	}
	form.Set("SignatureValue", c.signer.RequestSignature(amount, req.Reference, shp))

	reply, err := c.post(ctx, "/charge", form)
	if err != nil {
		return nil, err
	}
	st, err := parseStatus(reply.Status)
	if err != nil {
		return nil, err
	}
	return &ChargeResult{Reference: req.Reference, PaymentURL: reply.PaymentURL, Status: st}, nil
}

func (c *HTTPClient) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	amount := FormatAmount(req.Amount)
	shp := map[string]string{"original": req.OriginalReference}

	form := url.Values{}
	form.Set("OutSum", amount)
	form.Set("InvId", req.Reference)
	form.Set("Reason", req.Reason)
	form.Set("Shp_original", req.OriginalReference)
	form.Set("SignatureValue", c.signer.RequestSignature(amount, req.Reference, shp))

	reply, err := c.post(ctx, "/refund", form)
	if err != nil {
		return nil, err
	}
	st, err := parseStatus(reply.Status)
	if err != nil {
		return nil, err
	}
	return &RefundResult{Reference: req.Reference, Status: st}, nil
}

func (c *HTTPClient) Status(ctx context.Context, reference string) (*StatusResult, error) {
	form := url.Values{}
	form.Set("InvId", reference)
	form.Set("SignatureValue", c.signer.RequestSignature("", reference, nil))

	reply, err := c.post(ctx, "/status", form)
	if err != nil {
		return nil, err
	}
	st, err := parseStatus(reply.Status)
	if err != nil {
		return nil, err
	}
	out := &StatusResult{Reference: reference, Status: st, Reason: reply.Reason}
	if reply.Amount != "" {
		if out.Amount, err = ParseAmount(reply.Amount); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, form url.Values) (*gatewayReply, error) {
	form.Set("MerchantLogin", c.signer.Merchant())
	if c.isTest {
		form.Set("IsTest", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.loggerf("level=warn msg=gateway timeout path=%s inv_id=%s elapsed=%s", path, form.Get("InvId"), time.Since(started))
			return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status=%d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("gateway rejected %s: status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var reply gatewayReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &reply, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
