package redemptions

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Decode failure reasons. These strings are shown to verifiers verbatim.
const (
	DecodeErrCouldNotDecode = "Could not decode"
	DecodeErrInvalidFormat  = "Invalid format"
	DecodeErrExpired        = "Expired"
)

// Payload is the wire form carried inside the scannable code. The key names and their
// order are a compatibility contract with codes already printed.
type Payload struct {
	ID             string `json:"id"`
	StudentID      string `json:"studentId"`
	ProductID      string `json:"productId"`
	RedemptionCode string `json:"redemptionCode"`
	Token          string `json:"token"`
	Timestamp      *int64 `json:"timestamp"`
	Expiry         *int64 `json:"expiry"`
}

// DecodeResult is either {valid: true, data} or {valid: false, error}.
type DecodeResult struct {
	Valid bool     `json:"valid"`
	Data  *Payload `json:"data,omitempty"`
	Error string   `json:"error,omitempty"`
}

// EncodePayload serializes the lookup subset of record. Product name, coins, and status
// are left out; the verifier reads those from the store.
func EncodePayload(record *Record) (string, error) {
	if record == nil {
		return "", fmt.Errorf("record required")
	}
	ts := record.Timestamp
	expiry := record.ExpiryDate
	raw, err := json.Marshal(Payload{
		ID:             record.ID,
		StudentID:      record.StudentID,
		ProductID:      record.ProductID,
		RedemptionCode: record.RedemptionCode,
		Token:          record.OneTimeToken,
		Timestamp:      &ts,
		Expiry:         &expiry,
	})
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	return string(raw), nil
}

// DecodePayload parses a scanned string. Anything that is not a JSON object with the
// expected field types cannot be decoded; a decodable object without studentId,
// productId, or redemptionCode has an invalid format; an embedded expiry before now
// is expired.
func DecodePayload(raw string, now time.Time) DecodeResult {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return DecodeResult{Error: DecodeErrCouldNotDecode}
	}

	var payload Payload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return DecodeResult{Error: DecodeErrCouldNotDecode}
	}

	if payload.StudentID == "" || payload.ProductID == "" || payload.RedemptionCode == "" {
		return DecodeResult{Error: DecodeErrInvalidFormat}
	}

	if payload.Expiry != nil && *payload.Expiry < now.UnixMilli() {
		return DecodeResult{Error: DecodeErrExpired}
	}

	return DecodeResult{Valid: true, Data: &payload}
}
