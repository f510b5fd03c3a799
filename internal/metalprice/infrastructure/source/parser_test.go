package source

import (
	"errors"
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
)

func TestPatternParser(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"thousands", `<span class="price">£1,600.00</span>`, "1600", false},
		{"first match wins", `<p>£20.00 per oz, £640.00 per kg</p>`, "20", false},
		{"no pence", `spot £2345 today`, "2345", false},
		{"html entity", `<b>&pound;1,680.00</b>`, "1680", false},
		{"multiple groups", `£1,234,567.89`, "1234567.89", false},
		{"no symbol", `<span>1,600.00</span>`, "", true},
		{"empty", ``, "", true},
	}
	p := NewPatternParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse([]byte(tt.body))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrParseFailure) {
					t.Fatalf("err = %v, want ErrParseFailure", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("Parse = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPatternParserRejectsZero(t *testing.T) {
	if _, err := NewPatternParser().Parse([]byte("£0.00")); !errors.Is(err, domain.ErrParseFailure) {
		t.Fatalf("err = %v, want ErrParseFailure", err)
	}
}

func TestPatternParserCustomSymbol(t *testing.T) {
	p := NewPatternParserWith(regexp.MustCompile(`\$\d+(?:,\d+)*(?:\.\d{2})?`), "$")
	got, err := p.Parse([]byte(`USD $2,000.50`))
	if err != nil || !got.Equal(decimal.RequireFromString("2000.50")) {
		t.Fatalf("Parse = %s, %v", got, err)
	}
}

func TestJSONFieldParser(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		want    string
		wantErr bool
	}{
		{"number", "price", `{"price": 1600.25}`, "1600.25", false},
		{"nested", "data.gold.price", `{"data": {"gold": {"price": "1680.00"}}}`, "1680", false},
		{"missing field", "data.price", `{"data": {}}`, "", true},
		{"not an object", "data.price", `{"data": 5}`, "", true},
		{"bad json", "price", `{"price":`, "", true},
		{"bool value", "price", `{"price": true}`, "", true},
		{"negative", "price", `{"price": -1}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewJSONFieldParser(tt.path).Parse([]byte(tt.body))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrParseFailure) {
					t.Fatalf("err = %v, want ErrParseFailure", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("Parse = %s, want %s", got, tt.want)
			}
		})
	}
}
