package source

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
)

// DefaultPricePattern 匹配 £<digits>(,<digits>)*(.<digits><digits>)?
var DefaultPricePattern = regexp.MustCompile(`£\d+(?:,\d+)*(?:\.\d{2})?`)

// PatternParser 用正则从 HTML 页面中提取第一个货币格式的价格
type PatternParser struct {
	pattern *regexp.Regexp
	symbol  string
}

// NewPatternParser 使用默认英镑价格格式
func NewPatternParser() *PatternParser {
	return NewPatternParserWith(DefaultPricePattern, "£")
}

// NewPatternParserWith 自定义价格格式与货币符号
func NewPatternParserWith(pattern *regexp.Regexp, symbol string) *PatternParser {
	return &PatternParser{pattern: pattern, symbol: symbol}
}

// Parse 实现 domain.PriceParser
func (p *PatternParser) Parse(body []byte) (decimal.Decimal, error) {
	match := p.pattern.Find(body)
	if match == nil && bytes.Contains(body, []byte("&")) {
		// 页面可能把货币符号写成 &pound; 之类的实体
		match = p.pattern.Find([]byte(html.UnescapeString(string(body))))
	}
	if match == nil {
		return decimal.Zero, domain.ErrParseFailure
	}

	raw := strings.TrimPrefix(string(match), p.symbol)
	raw = strings.ReplaceAll(raw, ",", "")
	return positiveDecimal(raw)
}

// JSONFieldParser 从结构化 JSON 行情接口中按点分路径读取价格，例如 "data.price"
type JSONFieldParser struct {
	path []string
}

// NewJSONFieldParser 创建 JSON 字段解析器
func NewJSONFieldParser(path string) *JSONFieldParser {
	return &JSONFieldParser{path: strings.Split(path, ".")}
}

// Parse 实现 domain.PriceParser
func (p *JSONFieldParser) Parse(body []byte) (decimal.Decimal, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}

	node := doc
	for _, key := range p.path {
		obj, ok := node.(map[string]any)
		if !ok {
			return decimal.Zero, domain.ErrParseFailure
		}
		if node, ok = obj[key]; !ok {
			return decimal.Zero, domain.ErrParseFailure
		}
	}

	switch v := node.(type) {
	case json.Number:
		return positiveDecimal(v.String())
	case string:
		return positiveDecimal(v)
	default:
		return decimal.Zero, domain.ErrParseFailure
	}
}

func positiveDecimal(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not numeric", domain.ErrParseFailure, raw)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive price %s", domain.ErrParseFailure, raw)
	}
	return price, nil
}
