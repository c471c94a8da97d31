package gateway

import "testing"

func TestParseEvent(t *testing.T) {
	t.Run("successful charge", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"id":"evt_1","key":"charge.complete","data":{"id":"chrg_1","status":"successful","amount":1000}}`))
		if err != nil {
			t.Fatal(err)
		}
		if ev.Kind != EventChargeSucceeded || ev.ChargeRef != "chrg_1" || ev.Amount != 1000 {
			t.Fatalf("got %+v", ev)
		}
	})

	t.Run("charge metadata carries booking reference", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"id":"evt_1b","key":"charge.complete","data":{"id":"chrg_1","status":"successful","amount":1000,"metadata":{"booking_id":"bk-1"}}}`))
		if err != nil {
			t.Fatal(err)
		}
		if ev.BookingRef != "bk-1" {
			t.Fatalf("booking ref %q", ev.BookingRef)
		}
	})

	t.Run("failed charge", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"id":"evt_2","key":"charge.complete","data":{"id":"chrg_2","status":"failed","failure_code":"insufficient_fund"}}`))
		if err != nil {
			t.Fatal(err)
		}
		if ev.Kind != EventChargeFailed || ev.FailureCode != "insufficient_fund" {
			t.Fatalf("got %+v", ev)
		}
	})

	t.Run("paid transfer carries payout reference", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"id":"evt_3","key":"transfer.pay","data":{"id":"trsf_1","status":"paid","reference":"po-9"}}`))
		if err != nil {
			t.Fatal(err)
		}
		if ev.Kind != EventTransferSucceeded || ev.TransferRef != "trsf_1" || ev.PayoutRef != "po-9" {
			t.Fatalf("got %+v", ev)
		}
	})

	t.Run("unknown key maps to EventUnknown", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"id":"evt_4","key":"customer.update","data":{}}`))
		if err != nil {
			t.Fatal(err)
		}
		if ev.Kind != EventUnknown {
			t.Fatalf("got %v", ev.Kind)
		}
	})

	t.Run("missing id is an error", func(t *testing.T) {
		if _, err := ParseEvent([]byte(`{"key":"charge.complete"}`)); err == nil {
			t.Fatal("want error")
		}
	})

	t.Run("payload hash is stable and body-dependent", func(t *testing.T) {
		a1, _ := ParseEvent([]byte(`{"id":"evt_5","key":"charge.complete","data":{}}`))
		a2, _ := ParseEvent([]byte(`{"id":"evt_5","key":"charge.complete","data":{}}`))
		b, _ := ParseEvent([]byte(`{"id":"evt_5","key":"charge.complete","data":{"id":"x"}}`))
		if a1.PayloadHash != a2.PayloadHash {
			t.Fatal("hash not deterministic")
		}
		if a1.PayloadHash == b.PayloadHash {
			t.Fatal("hash ignores body")
		}
	})
}
