package redemptions

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/edurewards/edurewards-backend/pkg/enums"
)

func sampleRecord(now time.Time) *Record {
	return &Record{
		ID:             "3d0f5b1e-8d0c-4f5e-9d7a-1b2c3d4e5f60",
		StudentID:      "student-1",
		ProductID:      "product-1",
		ProductName:    "Pencil case",
		CoinsRedeemed:  100,
		Timestamp:      now.UnixMilli(),
		ExpiryDate:     now.Add(7 * 24 * time.Hour).UnixMilli(),
		OneTimeToken:   "mabc123-00112233445566778899aabbccddeeff",
		RedemptionCode: "EDU-K7Q-2M9X",
		Status:         enums.RedemptionStatusPending,
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	record := sampleRecord(now)

	encoded, err := EncodePayload(record)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	result := DecodePayload(encoded, now)
	if !result.Valid {
		t.Fatalf("expected valid decode, got %q", result.Error)
	}
	got := result.Data
	if got.ID != record.ID || got.StudentID != record.StudentID || got.ProductID != record.ProductID ||
		got.RedemptionCode != record.RedemptionCode || got.Token != record.OneTimeToken {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Timestamp == nil || *got.Timestamp != record.Timestamp {
		t.Fatalf("timestamp mismatch: %v", got.Timestamp)
	}
	if got.Expiry == nil || *got.Expiry != record.ExpiryDate {
		t.Fatalf("expiry mismatch: %v", got.Expiry)
	}
}

func TestEncodePayloadOmitsNonLookupFields(t *testing.T) {
	encoded, err := EncodePayload(sampleRecord(time.Now()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var keys map[string]any
	if err := json.Unmarshal([]byte(encoded), &keys); err != nil {
		t.Fatalf("payload is not a json object: %v", err)
	}
	want := []string{"id", "studentId", "productId", "redemptionCode", "token", "timestamp", "expiry"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), keys)
	}
	for _, k := range want {
		if _, ok := keys[k]; !ok {
			t.Fatalf("missing key %q in %s", k, encoded)
		}
	}
	if strings.Contains(encoded, "Pencil case") || strings.Contains(encoded, "status") {
		t.Fatalf("payload leaks record-only fields: %s", encoded)
	}
}

func TestDecodePayloadFailures(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute).UnixMilli()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"garbage", "definitely not json", DecodeErrCouldNotDecode},
		{"empty", "", DecodeErrCouldNotDecode},
		{"truncated", `{"studentId":"s"`, DecodeErrCouldNotDecode},
		{"json null", "null", DecodeErrCouldNotDecode},
		{"json array", `[1,2,3]`, DecodeErrCouldNotDecode},
		{"json number", `42`, DecodeErrCouldNotDecode},
		{"wrong type", `{"studentId":1,"productId":"p","redemptionCode":"EDU-AAA-0000"}`, DecodeErrCouldNotDecode},
		{"wrong type beats missing keys", `{"studentId":"s","expiry":"2026-09-01"}`, DecodeErrCouldNotDecode},
		{"missing code", `{"studentId":"s","productId":"p"}`, DecodeErrInvalidFormat},
		{"empty student", `{"studentId":"","productId":"p","redemptionCode":"EDU-AAA-0000"}`, DecodeErrInvalidFormat},
		{"missing product", `{"studentId":"s","redemptionCode":"EDU-AAA-0000"}`, DecodeErrInvalidFormat},
		{"expired", `{"studentId":"s","productId":"p","redemptionCode":"EDU-AAA-0000","expiry":` + itoa(past) + `}`, DecodeErrExpired},
		{"invalid beats expired", `{"studentId":"s","productId":"p","expiry":` + itoa(past) + `}`, DecodeErrInvalidFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := DecodePayload(tc.raw, now)
			if result.Valid {
				t.Fatalf("expected invalid decode for %q", tc.raw)
			}
			if result.Error != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, result.Error)
			}
			if result.Data != nil {
				t.Fatal("failed decode must not carry data")
			}
		})
	}
}

func TestDecodePayloadAcceptsPartialPayload(t *testing.T) {
	now := time.Now()
	result := DecodePayload(`{"studentId":"s","productId":"p","redemptionCode":"EDU-AAA-0000"}`, now)
	if !result.Valid {
		t.Fatalf("expected valid, got %q", result.Error)
	}
	if result.Data.ID != "" || result.Data.Token != "" || result.Data.Expiry != nil || result.Data.Timestamp != nil {
		t.Fatalf("absent fields must stay absent: %+v", result.Data)
	}
}

func TestDecodePayloadExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	raw := `{"studentId":"s","productId":"p","redemptionCode":"EDU-AAA-0000","expiry":` + itoa(now.UnixMilli()) + `}`
	if result := DecodePayload(raw, now); !result.Valid {
		t.Fatalf("expiry equal to now is not yet expired for the codec, got %q", result.Error)
	}
}

func itoa(v int64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}
