package version_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/version"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "single component", input: "1"},
		{name: "dotted", input: "2013.01.15.11.35.56"},
		{name: "timestamp", input: "20240101120000"},
		{name: "huge component", input: "123456789012345678901234567890"},
		{name: "empty", input: "", wantErr: true},
		{name: "trailing dot", input: "1.", wantErr: true},
		{name: "leading dot", input: ".1", wantErr: true},
		{name: "double dot", input: "1..2", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "letters", input: "1a", wantErr: true},
		{name: "underscore", input: "1_2", wantErr: true},
		{name: "space", input: "1 2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := version.Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, version.ErrInvalidVersion))
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.input, v.String())
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1", "1", 0},
		{"1", "1.0", 0},
		{"1.0.0", "1", 0},
		{"01", "1", 0},
		{"1.01", "1.1", 0},
		{"10", "2", 1},
		{"2", "10", -1},
		{"1.2", "1.10", -1},
		{"1.10", "1.9", 1},
		{"1.0.1", "1", 1},
		{"2013.01.15.11.35.56", "2013.01.15.11.35.57", -1},
		{"99999999999999999999", "100000000000000000000", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			a := version.MustParse(tt.a)
			b := version.MustParse(tt.b)

			require.Equal(t, tt.want, a.Compare(b))
			require.Equal(t, -tt.want, b.Compare(a))
			require.Equal(t, tt.want == 0, a.Equal(b))
			require.Equal(t, tt.want < 0, a.Less(b))
		})
	}
}

func TestKey(t *testing.T) {
	require.Equal(t, "1", version.MustParse("1").Key())
	require.Equal(t, "1", version.MustParse("1.0").Key())
	require.Equal(t, "1", version.MustParse("001.000").Key())
	require.Equal(t, "1.0.2", version.MustParse("1.00.2").Key())
	require.Equal(t, "0", version.MustParse("0.0").Key())
}

func TestSort(t *testing.T) {
	versions := []version.Version{
		version.MustParse("10"),
		version.MustParse("1.10"),
		version.MustParse("2"),
		version.MustParse("1.2"),
		version.MustParse("1"),
	}

	version.Sort(versions)

	got := make([]string, len(versions))
	for i, v := range versions {
		got[i] = v.String()
	}

	require.Equal(t, []string{"1", "1.2", "1.10", "2", "10"}, got)
}

func TestMustParse(t *testing.T) {
	require.Panics(t, func() { version.MustParse("nope") })
	require.True(t, version.Version{}.IsZero())
	require.False(t, version.MustParse("1").IsZero())
}
