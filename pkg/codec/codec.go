// Package codec provides the serialization used by the cache to estimate the
// footprint of stored values.
// The cache never stores encoded bytes: values are kept as-is and the codec is
// only consulted to size them.
//
// Package codec 提供缓存用于估算值占用空间的序列化功能。
// 缓存不会存储编码后的字节，值按原样保存，编解码器仅用于估算大小。
package codec

import (
	"encoding/json"
	"fmt"
)

// Codec defines the interface for encoding cache values.
// Implementations of this interface can be used to customize how composite
// values are measured.
//
// Codec 定义了编码缓存值的接口。
// 此接口的实现可用于自定义复合值的大小计算方式。
type Codec interface {
	// Marshal serializes a value into bytes.
	//
	// Marshal 将值序列化为字节。
	//
	// Parameters:
	//   - value: The value to serialize
	//
	// Returns:
	//   - []byte: The serialized bytes
	//   - error: An error if serialization fails
	Marshal(value any) ([]byte, error)

	// Name returns the name of this codec.
	//
	// Name 返回此编解码器的名称。
	Name() string
}

// JSONCodec implements Codec using JSON serialization.
// encoding/json reports cyclic values as errors instead of recursing forever,
// which the estimator relies on.
//
// JSONCodec 使用JSON序列化实现Codec。
// encoding/json 会将循环引用的值报告为错误而不是无限递归，估算器依赖这一点。
type JSONCodec struct{}

// Marshal serializes a value into JSON bytes.
//
// Marshal 将值序列化为JSON字节。
func (JSONCodec) Marshal(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Name returns "json".
func (JSONCodec) Name() string {
	return "json"
}

// DefaultCodec returns the codec used when none is configured.
//
// DefaultCodec 返回未配置时使用的默认编解码器。
func DefaultCodec() Codec {
	return JSONCodec{}
}

// GetCodec returns a codec by name.
//
// GetCodec 根据名称返回编解码器。
func GetCodec(name string) (Codec, error) {
	switch name {
	case "json", "":
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", name)
	}
}
