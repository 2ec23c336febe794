package lib

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"prestar/src/config"
)

type DLocalPaymentRequest struct {
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	Country           string  `json:"country"`
	PaymentMethodFlow string  `json:"payment_method_flow"`
	OrderID           string  `json:"order_id"`
	NotificationURL   string  `json:"notification_url"`
	CallbackURL       string  `json:"callback_url"`
}

type DLocalPaymentResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url"`
}

// DLocalCreatePayment starts a redirect payment. Requests are signed with
// the V2-HMAC-SHA256 scheme over login, timestamp and body.
func DLocalCreatePayment(ctx context.Context, req *DLocalPaymentRequest) (*DLocalPaymentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	login := config.DLocalAPIKey(ctx)
	xDate := time.Now().UTC().Format(time.RFC3339)
	mac := hmac.New(sha256.New, []byte(config.DLocalSecretKey(ctx)))
	mac.Write([]byte(login + xDate))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	apiUrl := os.Getenv("DLOCAL_API_URL")
	if apiUrl == "" {
		apiUrl = "https://sandbox.dlocal.com"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiUrl+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Date", xDate)
	httpReq.Header.Set("X-Login", login)
	httpReq.Header.Set("X-Trans-Key", os.Getenv("DLOCAL_TRANS_KEY"))
	httpReq.Header.Set("Authorization", fmt.Sprintf("V2-HMAC-SHA256, Signature: %s", signature))

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		log.Printf("[dlocal] Create payment failed with %d: %s\n", resp.StatusCode, string(data))
		return nil, fmt.Errorf("dlocal returned %d", resp.StatusCode)
	}
	var out DLocalPaymentResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
