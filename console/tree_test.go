package console

import (
	"context"
	"errors"
	"strconv"
	"testing"

	canopen "github.com/jaster-prj/canopen-console"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	c := New(Services{}, NewOutput(&syncBuffer{}), nil)
	return c.Tree()
}

func TestTree_Resolve(t *testing.T) {
	tree := newTestTree(t)

	tests := []struct {
		name     string
		line     []string
		wantPath []string
		wantArgs Args
	}{
		{
			name:     "upload without subindex",
			line:     []string{"sdo", "upload", "0x1000"},
			wantPath: []string{"sdo", "upload"},
			wantArgs: Args{"index": uint16(0x1000), "subindex": nil},
		},
		{
			name:     "upload with subindex",
			line:     []string{"sdo", "upload", "0x6000", "0"},
			wantPath: []string{"sdo", "upload"},
			wantArgs: Args{"index": uint16(0x6000), "subindex": uint8(0)},
		},
		{
			name:     "download without subindex",
			line:     []string{"sdo", "download", "0x6200", "0x1"},
			wantPath: []string{"sdo", "download"},
			wantArgs: Args{"index": uint16(0x6200), "subindex": nil, "value": "0x1"},
		},
		{
			name:     "download with subindex",
			line:     []string{"sdo", "download", "0x6200", "0x1", "0x3"},
			wantPath: []string{"sdo", "download"},
			wantArgs: Args{"index": uint16(0x6200), "subindex": uint8(1), "value": "0x3"},
		},
		{
			name:     "decimal index",
			line:     []string{"sdo", "upload", "4096"},
			wantPath: []string{"sdo", "upload"},
			wantArgs: Args{"index": uint16(0x1000), "subindex": nil},
		},
		{
			name:     "nmt service",
			line:     []string{"nmt", "service", "reset-node"},
			wantPath: []string{"nmt", "service"},
			wantArgs: Args{"service": "reset-node"},
		},
		{
			name:     "node guarding defaults",
			line:     []string{"nmt", "node-guarding", "start"},
			wantPath: []string{"nmt", "node-guarding", "start"},
			wantArgs: Args{"guard_time_ms": uint16(100), "life_time_factor": uint8(5)},
		},
		{
			name:     "node guarding guard time only",
			line:     []string{"nmt", "node-guarding", "start", "250"},
			wantPath: []string{"nmt", "node-guarding", "start"},
			wantArgs: Args{"guard_time_ms": uint16(250), "life_time_factor": uint8(5)},
		},
		{
			name:     "node guarding both",
			line:     []string{"nmt", "node-guarding", "start", "0x10", "3"},
			wantPath: []string{"nmt", "node-guarding", "start"},
			wantArgs: Args{"guard_time_ms": uint16(16), "life_time_factor": uint8(3)},
		},
		{
			name:     "device name",
			line:     []string{"device", "name"},
			wantPath: []string{"device", "name"},
			wantArgs: Args{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := tree.Resolve(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, call.Path)
			assert.Equal(t, tt.wantArgs, call.Args)
		})
	}
}

func TestTree_ResolveErrors(t *testing.T) {
	tree := newTestTree(t)

	tests := []struct {
		name     string
		line     []string
		wantErr  error
		wantKind DispatchErrorKind
		wantPath []string
	}{
		{name: "missing index", line: []string{"sdo", "upload"}, wantErr: ErrBadArgument, wantKind: BadArgument, wantPath: []string{"sdo", "upload"}},
		{name: "bad index", line: []string{"sdo", "upload", "abc"}, wantErr: strconv.ErrSyntax, wantKind: BadArgument, wantPath: []string{"sdo", "upload"}},
		{name: "index out of range", line: []string{"sdo", "upload", "0x10000"}, wantErr: strconv.ErrRange, wantKind: BadArgument, wantPath: []string{"sdo", "upload"}},
		{name: "surplus argument", line: []string{"sdo", "upload", "0x1000", "1", "2"}, wantErr: ErrBadArgument, wantKind: BadArgument, wantPath: []string{"sdo", "upload"}},
		{name: "download missing value", line: []string{"sdo", "download", "0x6200"}, wantErr: ErrBadArgument, wantKind: BadArgument, wantPath: []string{"sdo", "download"}},
		{name: "unknown service", line: []string{"nmt", "service", "bogus"}, wantErr: canopen.ErrUnknownService, wantKind: BadArgument, wantPath: []string{"nmt", "service"}},
		{name: "group only", line: []string{"nmt", "node-guarding"}, wantErr: ErrIncomplete, wantKind: Incomplete, wantPath: []string{"nmt", "node-guarding"}},
		{name: "unknown sub verb", line: []string{"sdo", "bogus"}, wantErr: ErrIncomplete, wantKind: Incomplete, wantPath: []string{"sdo"}},
		{name: "unknown verb", line: []string{"bogus"}, wantErr: ErrIncomplete, wantKind: Incomplete, wantPath: []string{}},
		{name: "life time factor overflow", line: []string{"nmt", "node-guarding", "start", "100", "256"}, wantErr: strconv.ErrRange, wantKind: BadArgument, wantPath: []string{"nmt", "node-guarding", "start"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := tree.Resolve(tt.line)
			assert.Nil(t, call)
			assert.ErrorIs(t, err, tt.wantErr)

			var dispatchErr *DispatchError
			require.True(t, errors.As(err, &dispatchErr))
			assert.Equal(t, tt.wantKind, dispatchErr.Kind)
			assert.Equal(t, tt.wantPath, dispatchErr.Path)
		})
	}
}

func TestTree_Usage(t *testing.T) {
	tree := newTestTree(t)

	root := tree.Usage(nil)
	assert.Contains(t, root, "Commands:")
	for _, verb := range []string{"device", "sdo", "nmt"} {
		assert.Contains(t, root, verb)
	}

	upload := tree.Usage([]string{"sdo", "upload"})
	assert.Contains(t, upload, "Usage: sdo upload <index> [<subindex>]")
	assert.Contains(t, upload, "Read device type")

	guarding := tree.Usage([]string{"nmt", "node-guarding"})
	assert.Contains(t, guarding, "Usage: nmt node-guarding {start|stop}")
	assert.Contains(t, guarding, "nmt node-guarding start")

	start := tree.Usage([]string{"nmt", "node-guarding", "start"})
	assert.Contains(t, start, "[<guard_time_ms=100>] [<life_time_factor=5>]")

	assert.Equal(t, root, tree.Usage([]string{"bogus"}))
}

func TestTree_Invoke(t *testing.T) {
	tree := NewTree()
	var got Args
	tree.Register([]string{"echo"}, "", []ArgSpec{{Name: "text"}}, func(_ context.Context, args Args) error {
		got = args
		return nil
	})

	call, err := tree.Resolve([]string{"echo", "hi"})
	require.NoError(t, err)
	require.NoError(t, call.Invoke(context.Background()))
	assert.Equal(t, "hi", got.String("text"))
	assert.True(t, got.Has("text"))
	assert.False(t, got.Has("other"))
}

func TestParseIntWithRadix(t *testing.T) {
	tests := []struct {
		token   string
		bitSize int
		want    any
		wantErr bool
	}{
		{"0x1000", 16, uint16(0x1000), false},
		{"4096", 16, uint16(4096), false},
		{"0b101", 8, uint8(5), false},
		{"0o17", 8, uint8(15), false},
		{"0xFFFFFFFF", 32, uint32(0xFFFFFFFF), false},
		{"0x100", 8, nil, true},
		{"-1", 16, nil, true},
		{"x10", 16, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseIntWithRadix(tt.bitSize)(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
