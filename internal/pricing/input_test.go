package pricing

import (
	"context"
	"encoding/json"
	"testing"
)

func TestCoerceAcceptsStringNumbersAndBooleans(t *testing.T) {
	raw := `[{
		"productCategory": "general",
		"packagingType": "crate",
		"weight": "12.5",
		"cbm": 0.04,
		"length": "60",
		"width": 40,
		"height": "35",
		"repeatCount": "2",
		"wantsInsurance": "yes",
		"isElectronicsShipment": 0,
		"declaredShipmentValue": "350",
		"hs_code": "8471.30",
		"shipmentType": "LCL"
	}]`
	var payloads []ParcelPayload
	if err := json.Unmarshal([]byte(raw), &payloads); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	inputs, diags := CoerceParcels(payloads)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diags)
	}
	in := inputs[0]
	if got := in.WeightKg.StringFixed(1); got != "12.5" {
		t.Fatalf("expected weight 12.5, got %s", got)
	}
	if in.RepeatCount != 2 {
		t.Fatalf("expected repeat count 2, got %d", in.RepeatCount)
	}
	if !in.WantsInsurance || in.Electronics {
		t.Fatalf("expected wantsInsurance=true electronics=false, got %v/%v", in.WantsInsurance, in.Electronics)
	}
	if in.HSCode != "8471.30" || in.ShipmentType != "LCL" {
		t.Fatalf("expected hs_code and shipmentType echoed, got %q %q", in.HSCode, in.ShipmentType)
	}
}

func TestCoerceMalformedWeightSkipsProductOnly(t *testing.T) {
	raw := `[{"productCategory": "general", "packagingType": "crate", "weight": "heavy", "repeatCount": 1}]`
	var payloads []ParcelPayload
	if err := json.Unmarshal([]byte(raw), &payloads); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	inputs, diags := CoerceParcels(payloads)
	if !inputs[0].SkipProduct {
		t.Fatal("expected product price skip")
	}
	if len(diags) != 1 || diags[0].Field != "weight" {
		t.Fatalf("expected single weight diagnostic, got %v", diags)
	}

	// The skipped parcel still contributes its packaging cost.
	engine := Engine{Catalog: testCatalog()}
	result, err := engine.Price(context.Background(), Input{Parcels: inputs, Diagnostics: diags})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if got := result.PackagingCost.StringFixed(2); got != "20.00" {
		t.Fatalf("expected packaging 20.00, got %s", got)
	}
	if len(result.ParcelCalculations) != 0 {
		t.Fatalf("expected no product lines, got %d", len(result.ParcelCalculations))
	}
}

func TestCoerceDefaultsRepeatCount(t *testing.T) {
	raw := `[{"productCategory": "general", "weight": 5},
		{"productCategory": "general", "weight": 5, "repeatCount": "many"},
		{"productCategory": "general", "weight": 5, "repeatCount": 0}]`
	var payloads []ParcelPayload
	if err := json.Unmarshal([]byte(raw), &payloads); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	inputs, diags := CoerceParcels(payloads)
	for i, in := range inputs {
		if in.RepeatCount != 1 {
			t.Fatalf("parcel %d: expected repeat count 1, got %d", i, in.RepeatCount)
		}
	}
	// Only the two explicit-but-invalid values warrant a diagnostic.
	if len(diags) != 2 {
		t.Fatalf("expected 2 diagnostics, got %v", diags)
	}
}

func TestCoerceNegativeDeclaredValueTreatedAsZero(t *testing.T) {
	raw := `[{"productCategory": "general", "weight": 5, "declaredShipmentValue": -100, "wantsInsurance": true}]`
	var payloads []ParcelPayload
	if err := json.Unmarshal([]byte(raw), &payloads); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	inputs, diags := CoerceParcels(payloads)
	if !inputs[0].DeclaredValue.IsZero() {
		t.Fatalf("expected zero declared value, got %s", inputs[0].DeclaredValue)
	}
	if len(diags) != 1 || diags[0].Field != "declaredShipmentValue" {
		t.Fatalf("expected declared value diagnostic, got %v", diags)
	}
	if inputs[0].SkipProduct {
		t.Fatal("declared value must not skip the product price")
	}
}

func TestLooseNumberRoundTrip(t *testing.T) {
	var n LooseNumber
	if err := json.Unmarshal([]byte(`"3.50"`), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "3.50" {
		t.Fatalf("expected 3.50, got %s", out)
	}
}
