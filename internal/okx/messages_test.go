package okx

import (
	"errors"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		isEvent bool
		channel string
	}{
		{
			"subscribe ack",
			`{"event":"subscribe","arg":{"channel":"books","instId":"BTC-USDT"}}`,
			true, "books",
		},
		{
			"error event",
			`{"event":"error","code":"60012","msg":"Invalid request"}`,
			true, "",
		},
		{
			"channel data",
			`{"arg":{"channel":"books","instId":"BTC-USDT"},"data":[{"bids":[["50000","1"]],"asks":[]}]}`,
			false, "books",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.raw))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.IsEvent() != tt.isEvent {
				t.Errorf("IsEvent = %v, want %v", env.IsEvent(), tt.isEvent)
			}
			if env.Arg.Channel != tt.channel {
				t.Errorf("channel = %s, want %s", env.Arg.Channel, tt.channel)
			}
		})
	}

	if _, err := ParseEnvelope([]byte("not json")); err == nil {
		t.Error("expected error for malformed message")
	}
}

func TestParseBookUpdate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantBid *float64
		wantAsk *float64
		wantErr bool
	}{
		{
			"both sides",
			`{"arg":{"channel":"books","instId":"BTC-USDT"},"data":[{"bids":[["50000","1.5","0","4"]],"asks":[["50001","2","0","3"]]}]}`,
			ptr(50000), ptr(50001), false,
		},
		{
			"bids only",
			`{"arg":{"channel":"books","instId":"BTC-USDT"},"data":[{"bids":[["49999","1"]],"asks":[]}]}`,
			ptr(49999), nil, false,
		},
		{
			"asks only",
			`{"arg":{"channel":"books","instId":"BTC-USDT"},"data":[{"bids":[],"asks":[["50002","0.5"]]}]}`,
			nil, ptr(50002), false,
		},
		{
			"empty data",
			`{"arg":{"channel":"books","instId":"BTC-USDT"},"data":[]}`,
			nil, nil, true,
		},
		{
			"bad price",
			`{"arg":{"channel":"books","instId":"BTC-USDT"},"data":[{"bids":[["abc","1"]],"asks":[]}]}`,
			nil, nil, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.raw))
			if err != nil {
				t.Fatalf("envelope: %v", err)
			}

			upd, err := ParseBookUpdate(env)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if upd.InstID != "BTC-USDT" {
				t.Errorf("instId = %s", upd.InstID)
			}
			checkPtr(t, "bid", upd.Bid, tt.wantBid)
			checkPtr(t, "ask", upd.Ask, tt.wantAsk)
		})
	}
}

func TestParseBookUpdateVolumes(t *testing.T) {
	raw := `{"arg":{"channel":"books","instId":"SOL-USDT"},"data":[{"bids":[["90","10","0","2"]],"asks":[["91","20","0","5"]]}]}`
	env, _ := ParseEnvelope([]byte(raw))

	upd, err := ParseBookUpdate(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.BidVolume == nil || *upd.BidVolume != 10 {
		t.Errorf("bid volume = %v, want 10", upd.BidVolume)
	}
	if upd.AskVolume == nil || *upd.AskVolume != 20 {
		t.Errorf("ask volume = %v, want 20", upd.AskVolume)
	}
}

func TestParseBalanceUpdates(t *testing.T) {
	raw := `{"arg":{"channel":"account"},"data":[{"details":[
		{"ccy":"USDT","availBal":"1500.5","frozenBal":"10"},
		{"ccy":"BTC","availBal":"0.25","frozenBal":""}
	]}]}`
	env, _ := ParseEnvelope([]byte(raw))

	updates, dropped, err := ParseBalanceUpdates(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dropped) != 0 {
		t.Fatalf("unexpected dropped records: %v", dropped)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].Currency != "USDT" || updates[0].Available != 1500.5 || updates[0].Frozen != 10 {
		t.Errorf("unexpected USDT update: %+v", updates[0])
	}
	if updates[1].Currency != "BTC" || updates[1].Available != 0.25 || updates[1].Frozen != 0 {
		t.Errorf("unexpected BTC update: %+v", updates[1])
	}
}

func TestParseBalanceUpdatesDropsMalformedRecord(t *testing.T) {
	raw := `{"arg":{"channel":"account"},"data":[{"details":[
		{"ccy":"USDT","availBal":"not-a-number"},
		{"ccy":"BTC","availBal":"2.5","frozenBal":"bad"},
		{"ccy":"SOL","availBal":"7"}
	]}]}`
	env, _ := ParseEnvelope([]byte(raw))

	updates, dropped, err := ParseBalanceUpdates(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dropped) != 2 {
		t.Fatalf("expected 2 dropped records, got %d: %v", len(dropped), dropped)
	}
	if len(updates) != 1 {
		t.Fatalf("expected 1 surviving update, got %d", len(updates))
	}
	if updates[0].Currency != "SOL" || updates[0].Available != 7 {
		t.Errorf("unexpected surviving update: %+v", updates[0])
	}
}

func TestParseOrderEvents(t *testing.T) {
	raw := `{"arg":{"channel":"orders"},"data":[
		{"ordId":"555","instId":"BTC-USDT","side":"buy","px":"50000","sz":"5","cTime":"1700000000000","state":"live"},
		{"ordId":"556","instId":"SOL-USDT","side":"sell","px":"","sz":"2","cTime":"1700000001000","state":"filled"}
	]}`
	env, _ := ParseEnvelope([]byte(raw))

	events, err := ParseOrderEvents(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	if events[0].OrderID != "555" || events[0].State != OrderStateLive || events[0].Price != 50000 {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	// маркет-ордер без цены
	if events[1].State != OrderStateFilled || events[1].Price != 0 || events[1].Size != 2 {
		t.Errorf("unexpected second event: %+v", events[1])
	}
	if events[0].CreatedAt.UnixMilli() != 1700000000000 {
		t.Errorf("unexpected cTime: %v", events[0].CreatedAt)
	}
}

func TestParseOrderResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			"accepted",
			`{"id":"1","op":"order","code":"0","msg":"","data":[{"ordId":"777","sCode":"0","sMsg":""}]}`,
			"777", false,
		},
		{
			"rejected top level",
			`{"id":"1","op":"order","code":"60013","msg":"insufficient balance","data":[]}`,
			"", true,
		},
		{
			"rejected per order",
			`{"id":"1","op":"order","code":"0","data":[{"ordId":"","sCode":"51008","sMsg":"insufficient balance"}]}`,
			"", true,
		},
		{
			"no data",
			`{"id":"1","op":"order","code":"0","data":[]}`,
			"", true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOrderResponse([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ordId = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseOrderResponseTypedError(t *testing.T) {
	raw := `{"id":"1","op":"order","code":"0","data":[{"ordId":"","sCode":"51008","sMsg":"insufficient balance"}]}`

	_, err := ParseOrderResponse([]byte(raw))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Code != "51008" || apiErr.Op != "order" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestSubscribeRequest(t *testing.T) {
	msg := SubscribeRequest(ChannelBooks, []string{"BTC-USDT", "SOL-USDT"})

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Op   string `json:"op"`
		Args []struct {
			Channel string `json:"channel"`
			InstID  string `json:"instId"`
		} `json:"args"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Op != "subscribe" || len(decoded.Args) != 2 {
		t.Fatalf("unexpected request: %s", raw)
	}
	if decoded.Args[0].Channel != "books" || decoded.Args[0].InstID != "BTC-USDT" {
		t.Errorf("unexpected first arg: %+v", decoded.Args[0])
	}
}

func ptr(v float64) *float64 { return &v }

func checkPtr(t *testing.T, field string, got, want *float64) {
	t.Helper()
	if want == nil {
		if got != nil {
			t.Errorf("%s = %v, want nil", field, *got)
		}
		return
	}
	if got == nil {
		t.Errorf("%s = nil, want %v", field, *want)
		return
	}
	if *got != *want {
		t.Errorf("%s = %v, want %v", field, *got, *want)
	}
}
