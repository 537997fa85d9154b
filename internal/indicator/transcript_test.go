package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNearDuplicate(t *testing.T) {
	tests := []struct {
		name string
		prev string
		next string
		want bool
	}{
		{name: "empty previous", prev: "", next: "hello", want: false},
		{name: "case and spacing", prev: "Hello  World", next: "hello world", want: true},
		{name: "one letter", prev: "i built a scheduler in go", next: "i built a scheduler in go.", want: true},
		{name: "grown sentence", prev: "i built", next: "i built a scheduler in go", want: false},
		{name: "unrelated", prev: "yes", next: "no", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, nearDuplicate(tc.prev, tc.next))
		})
	}
}
