package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable 直接行情源不可用（网络、超时、HTTP 状态、熔断）
	ErrSourceUnavailable = errors.New("price source unavailable")
	// ErrParseFailure 响应中找不到价格或价格非数值，按源不可用处理
	ErrParseFailure = fmt.Errorf("%w: price not found in payload", ErrSourceUnavailable)
	// ErrPersistence 上一次价格存储或镜像读写失败，非致命
	ErrPersistence = errors.New("price persistence failed")
	// ErrPriceNotFound 快照中没有该金属
	ErrPriceNotFound = errors.New("price not found")
	// ErrUnknownMetal 未知金属标识
	ErrUnknownMetal = errors.New("unknown metal")
	// ErrIncompleteSnapshot 快照缺少金属、重复或价格非正
	ErrIncompleteSnapshot = errors.New("incomplete snapshot")
)
