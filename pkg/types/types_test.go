package types_test

import (
	"testing"

	"github.com/cuemby/chainkv/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationApply(t *testing.T) {
	key := []byte("a")

	tests := []struct {
		name        string
		op          types.Operation
		prev        []byte
		present     bool
		wantValue   []byte
		wantPresent bool
	}{
		{"put over absent", types.Put(key, []byte("1"), 1), nil, false, []byte("1"), true},
		{"put over present", types.Put(key, []byte("1"), 1), []byte("0"), true, []byte("1"), true},
		{"remove absent", types.Remove(key, 1), nil, false, nil, false},
		{"remove present", types.Remove(key, 1), []byte("0"), true, nil, false},
		{"put-if-absent installs", types.PutIfAbsent(key, []byte("1"), 1), nil, false, []byte("1"), true},
		{"put-if-absent no-op", types.PutIfAbsent(key, []byte("1"), 1), []byte("0"), true, []byte("0"), true},
		{"replace on absent is no-op", types.Replace(key, []byte("1"), 1), nil, false, nil, false},
		{"replace on present installs", types.Replace(key, []byte("1"), 1), []byte("0"), true, []byte("1"), true},
		{"conditional replace match", types.ReplaceConditional(key, []byte("0"), []byte("1"), 1), []byte("0"), true, []byte("1"), true},
		{"conditional replace mismatch", types.ReplaceConditional(key, []byte("0"), []byte("1"), 1), []byte("9"), true, []byte("9"), true},
		{"conditional replace on absent is no-op", types.ReplaceConditional(key, []byte("0"), []byte("1"), 1), nil, false, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotValue, gotPresent := tt.op.Apply(tt.prev, tt.present)
			assert.Equal(t, tt.wantPresent, gotPresent)
			assert.Equal(t, tt.wantValue, gotValue)
		})
	}
}

func TestHashKeyStable(t *testing.T) {
	h1 := types.HashKey([]byte("a"))
	h2 := types.HashKey([]byte("a"))
	require.Equal(t, h1, h2)

	h3 := types.HashKey([]byte("b"))
	assert.NotEqual(t, h1, h3)
}
