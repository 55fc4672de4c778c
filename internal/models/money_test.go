package models

import (
	"encoding/json"
	"testing"
)

func TestMoneyUnmarshalNumberAndString(t *testing.T) {
	var fromNumber Money
	if err := json.Unmarshal([]byte(`10.5`), &fromNumber); err != nil {
		t.Fatalf("unmarshal number failed: %v", err)
	}
	var fromString Money
	if err := json.Unmarshal([]byte(`"10.50"`), &fromString); err != nil {
		t.Fatalf("unmarshal string failed: %v", err)
	}
	if !fromNumber.Equal(fromString.Decimal) {
		t.Fatalf("expected equal amounts, got %s and %s", fromNumber, fromString)
	}
	raw, err := json.Marshal(fromNumber)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(raw) != `"10.50"` {
		t.Fatalf("unexpected marshal output: %s", raw)
	}
}

func TestMoneyTimesAndPlus(t *testing.T) {
	total := MustMoney("10.00").Times(2).Plus(MustMoney("5.00"))
	if total.String() != "25.00" {
		t.Fatalf("unexpected total: %s", total)
	}
}
