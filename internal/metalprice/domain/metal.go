// Package domain 贵金属行情服务的领域模型、值对象、领域服务与端口定义
package domain

import (
	"fmt"
	"strings"
)

// Metal 贵金属品种
type Metal string

const (
	Gold      Metal = "gold"
	Silver    Metal = "silver"
	Platinum  Metal = "platinum"
	Palladium Metal = "palladium"
)

// AllMetals 快照中的金属及其固定顺序
var AllMetals = []Metal{Gold, Silver, Platinum, Palladium}

// DirectMetals 有直接外部行情源的金属
var DirectMetals = []Metal{Gold, Silver}

// ReferenceMetal 派生价格的参考金属
const ReferenceMetal = Gold

// ParseMetal 解析金属标识，忽略大小写与首尾空白
func ParseMetal(s string) (Metal, error) {
	m := Metal(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllMetals {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetal, s)
}

// IsDirect 是否有直接行情源
func (m Metal) IsDirect() bool {
	for _, d := range DirectMetals {
		if m == d {
			return true
		}
	}
	return false
}

func (m Metal) String() string {
	return string(m)
}
