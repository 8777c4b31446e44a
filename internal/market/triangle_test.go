package market

import (
	"reflect"
	"testing"
)

func testCatalog(ids ...string) *Catalog {
	instruments := make([]Instrument, 0, len(ids))
	for _, id := range ids {
		inst, err := ParseInstrument(id)
		if err != nil {
			panic(err)
		}
		instruments = append(instruments, inst)
	}
	return NewCatalog(instruments)
}

func testRules() GraphRules {
	return GraphRules{
		Excluded:   NewCurrencySet([]string{"EUR", "TRY"}),
		Settlement: NewCurrencySet([]string{"USDT", "USDC"}),
		Anchors:    NewCurrencySet([]string{"USDT", "USDC", "BTC", "ETH"}),
		Bridge:     NewCurrencySet([]string{"BTC", "ETH", "SOL"}),
	}
}

func TestParseInstrument(t *testing.T) {
	tests := []struct {
		id          string
		base, quote string
		expectError bool
	}{
		{"BTC-USDT", "BTC", "USDT", false},
		{"SOL-BTC", "SOL", "BTC", false},
		{"BTCUSDT", "", "", true},
		{"-USDT", "", "", true},
		{"BTC-", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		inst, err := ParseInstrument(tt.id)
		if tt.expectError {
			if err == nil {
				t.Errorf("ParseInstrument(%q): expected error, got nil", tt.id)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseInstrument(%q): unexpected error: %v", tt.id, err)
			continue
		}
		if inst.Base != tt.base || inst.Quote != tt.quote {
			t.Errorf("ParseInstrument(%q) = %s/%s, want %s/%s",
				tt.id, inst.Base, inst.Quote, tt.base, tt.quote)
		}
	}
}

func TestBuildTrianglesFindsCycle(t *testing.T) {
	catalog := testCatalog("SOL-BTC", "BTC-USDT", "SOL-USDT")

	triangles := BuildTriangles(catalog, testRules())
	if len(triangles) == 0 {
		t.Fatal("expected at least one triangle")
	}

	found := false
	for _, tri := range triangles {
		if tri.Leg1.ID == "SOL-BTC" && tri.Leg2.ID == "BTC-USDT" && tri.Leg3.ID == "SOL-USDT" {
			found = true
		}
	}
	if !found {
		t.Errorf("SOL-BTC / BTC-USDT / SOL-USDT cycle not generated, got %v", triangles)
	}
}

func TestBuildTrianglesDeterministic(t *testing.T) {
	catalog := testCatalog(
		"SOL-BTC", "BTC-USDT", "SOL-USDT",
		"ETH-BTC", "ETH-USDT", "SOL-ETH",
	)
	rules := testRules()

	first := BuildTriangles(catalog, rules)
	for i := 0; i < 10; i++ {
		again := BuildTriangles(catalog, rules)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d produced different result:\nfirst %v\nagain %v", i, first, again)
		}
	}
}

func TestBuildTrianglesSkipsExcluded(t *testing.T) {
	catalog := testCatalog("BTC-EUR", "EUR-USDT", "BTC-USDT", "SOL-BTC", "SOL-USDT")

	triangles := BuildTriangles(catalog, testRules())
	for _, tri := range triangles {
		for _, c := range []string{
			tri.Leg1.Base, tri.Leg1.Quote,
			tri.Leg2.Base, tri.Leg2.Quote,
			tri.Leg3.Base, tri.Leg3.Quote,
		} {
			if c == "EUR" || c == "TRY" {
				t.Errorf("excluded currency %s appears in triangle %s", c, tri.Key())
			}
		}
	}
}

func TestBuildTrianglesAnchorGate(t *testing.T) {
	// Цикл SOL-DOGE-LTC замкнут, но ни одна из валют не якорная.
	catalog := testCatalog("SOL-DOGE", "DOGE-LTC", "LTC-SOL")

	triangles := BuildTriangles(catalog, testRules())
	if len(triangles) != 0 {
		t.Errorf("expected no triangles without an anchor closing currency, got %v", triangles)
	}
}

func TestFilterTriangles(t *testing.T) {
	mustTri := func(l1, l2, l3 string) Triangle {
		p1, _ := ParseInstrument(l1)
		p2, _ := ParseInstrument(l2)
		p3, _ := ParseInstrument(l3)
		return Triangle{Leg1: p1, Leg2: p2, Leg3: p3}
	}

	tests := []struct {
		name string
		tri  Triangle
		keep bool
	}{
		{
			// затрагивает USDT, третья нога USDC-USDT целиком расчётная
			"settlement last leg",
			mustTri("BTC-USDT", "BTC-USDC", "USDC-USDT"),
			true,
		},
		{
			// обе валюты второй ноги - bridge-активы
			"bridge middle leg",
			mustTri("SOL-USDT", "SOL-ETH", "ETH-USDT"),
			true,
		},
		{
			// третья нога DOGE-USDT не целиком расчётная, вторая не bridge
			"no rule matches",
			mustTri("DOGE-BTC", "BTC-USDT", "DOGE-USDT"),
			false,
		},
		{
			// подходит по правилам, но содержит исключённую валюту
			"excluded currency",
			mustTri("EUR-USDT", "EUR-USDC", "USDC-USDT"),
			false,
		},
	}

	rules := testRules()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FilterTriangles([]Triangle{tt.tri}, rules)
			kept := len(out) == 1
			if kept != tt.keep {
				t.Errorf("keep = %v, want %v", kept, tt.keep)
			}
		})
	}
}

func TestUniquePairs(t *testing.T) {
	p := func(id string) Instrument {
		inst, _ := ParseInstrument(id)
		return inst
	}
	triangles := []Triangle{
		{Leg1: p("SOL-BTC"), Leg2: p("BTC-USDT"), Leg3: p("SOL-USDT")},
		{Leg1: p("ETH-BTC"), Leg2: p("BTC-USDT"), Leg3: p("ETH-USDT")},
	}

	want := []string{"BTC-USDT", "ETH-BTC", "ETH-USDT", "SOL-BTC", "SOL-USDT"}
	got := UniquePairs(triangles)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UniquePairs = %v, want %v", got, want)
	}
}

func TestSplitPairs(t *testing.T) {
	tests := []struct {
		name  string
		pairs []string
		n     int
		want  [][]string
	}{
		{
			"even split",
			[]string{"a", "b", "c", "d", "e", "f"}, 3,
			[][]string{{"a", "b"}, {"c", "d"}, {"e", "f"}},
		},
		{
			"fewer pairs than shards",
			[]string{"a", "b"}, 3,
			[][]string{{"a"}, {"b"}},
		},
		{
			"empty",
			nil, 3,
			nil,
		},
		{
			"single shard",
			[]string{"a", "b"}, 1,
			[][]string{{"a", "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitPairs(tt.pairs, tt.n)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitPairs = %v, want %v", got, tt.want)
			}
		})
	}
}
