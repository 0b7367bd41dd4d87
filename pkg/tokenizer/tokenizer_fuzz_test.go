//go:build fuzz
// +build fuzz

package tokenizer

import (
	"testing"
)

// FuzzTokenizer checks that arbitrary input always terminates with End or
// Error and never panics.
func FuzzTokenizer(f *testing.F) {
	f.Add(`{}`)
	f.Add(`{"a": [1, 2.5, -3e10, nan, -inf], "b": "xé"}`)
	f.Add(`[true, false, null]`)
	f.Add(`{"a": "😀"}`)
	f.Add(`{"unterminated": `)

	f.Fuzz(func(t *testing.T, input string) {
		if len(input) > 1<<16 {
			t.Skip("Input too large for fuzz test")
		}

		for _, opts := range [][]Option{nil, {AllowComments()}} {
			tok := New(input, opts...)
			// every token consumes at least one byte, so this bounds the scan
			limit := len(input) + 2
			for i := 0; ; i++ {
				if i > limit {
					t.Fatalf("tokenizer did not terminate on %q", input)
				}
				next := tok.Next()
				if next.Kind == End || next.Kind == Error {
					if again := tok.Next(); again != next {
						t.Fatalf("terminal token changed: %v then %v", next, again)
					}
					break
				}
			}
		}
	})
}
