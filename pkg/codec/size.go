package codec

import (
	"reflect"
)

const (
	// ScalarSize is the fixed estimate for nil, booleans and numbers.
	// ScalarSize 是nil、布尔值和数字的固定估算大小。
	ScalarSize int64 = 8

	// FallbackSize is used when a composite value cannot be serialized
	// (cycles, channels, functions).
	// FallbackSize 用于无法序列化的复合值（循环引用、通道、函数）。
	FallbackSize int64 = 1024
)

// Estimator estimates the footprint of arbitrary values.
// The result is an estimate, not an exact byte count: callers may only rely on
// relative ordering and capacity-pressure signalling.
//
// Estimator 估算任意值的占用空间。
// 结果是估算值而非精确字节数，调用方只能依赖其相对大小和容量压力信号。
type Estimator struct {
	codec Codec
}

// NewEstimator creates an estimator that measures composite values with c.
// A nil codec selects DefaultCodec.
//
// NewEstimator 创建一个使用c度量复合值的估算器。
func NewEstimator(c Codec) *Estimator {
	if c == nil {
		c = DefaultCodec()
	}
	return &Estimator{codec: c}
}

var defaultEstimator = NewEstimator(nil)

// EstimateSize estimates the size of v with the default JSON codec.
//
// EstimateSize 使用默认JSON编解码器估算v的大小。
func EstimateSize(v any) int64 {
	return defaultEstimator.Estimate(v)
}

// Estimate returns the estimated size of v in bytes. It never panics.
//
// Estimate 返回v的估算大小（字节），不会panic。
func (e *Estimator) Estimate(v any) (size int64) {
	switch t := v.(type) {
	case nil, bool:
		return ScalarSize
	case string:
		return int64(len(t))
	case []byte:
		return int64(len(t))
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return ScalarSize
	case reflect.String:
		return int64(reflect.ValueOf(v).Len())
	}

	defer func() {
		if r := recover(); r != nil {
			size = FallbackSize
		}
	}()

	data, err := e.codec.Marshal(v)
	if err != nil {
		return FallbackSize
	}
	return int64(len(data))
}
