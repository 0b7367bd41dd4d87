//go:build bench
// +build bench

package codec

import (
	"fmt"
	"strings"
	"testing"
)

func benchInput(children int) string {
	parts := make([]string, children)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{ "foo_int": %d, "foo_string": "child %d", "foo_points": [ { "x": 1, "y": 2, "z": 3 } ] }`, i, i)
	}
	return `{ "foo_string": "root", "foo_bytes": [1, 2, 3, 4, 5, 6, 7, 8], "children": [` + strings.Join(parts, ", ") + `] }`
}

func BenchmarkEncode(b *testing.B) {
	root := loadRoot(b)

	for _, n := range []int{1, 10, 100} {
		input := benchInput(n)
		enc := NewEncoder(root, EncodeOptions{})
		b.Run(fmt.Sprintf("children=%d", n), func(b *testing.B) {
			b.SetBytes(int64(len(input)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := enc.Encode(input); err != nil {
					b.Fatalf("Encode failed: %v", err)
				}
			}
		})
	}
}

func BenchmarkPrint(b *testing.B) {
	root := loadRoot(b)

	for _, n := range []int{1, 10, 100} {
		buf, err := Encode(benchInput(n), root, EncodeOptions{})
		if err != nil {
			b.Fatalf("Encode failed: %v", err)
		}
		for _, multi := range []bool{false, true} {
			opts := PrintOptions{MultiLine: multi}
			b.Run(fmt.Sprintf("children=%d/multi_line=%v", n, multi), func(b *testing.B) {
				b.SetBytes(int64(len(buf)))
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := Print(buf, root, opts); err != nil {
						b.Fatalf("Print failed: %v", err)
					}
				}
			})
		}
	}
}

func BenchmarkRecordCodec_Encode(b *testing.B) {
	codec := NewRecordCodec()
	message := make([]byte, 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Encode("Configuration", message); err != nil {
			b.Fatalf("Encode failed: %v", err)
		}
	}
}
