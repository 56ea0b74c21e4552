package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScope() Scope {
	return Scope{
		Sender:    "paloma1sender",
		ChainID:   "paloma-testnet-15",
		Codes:     map[string]uint64{"pair": 2, "cw20_base": 1},
		Contracts: map[string]string{"factory": "paloma1factory"},
		Values:    map[string]string{"grain_dex_lp": "paloma1lp"},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		want    string
		wantErr error
	}{
		{
			name: "address and sender",
			msg:  `{"palomadex_factory": "${contracts.factory}", "owner": "${sender}"}`,
			want: `{"palomadex_factory": "paloma1factory", "owner": "paloma1sender"}`,
		},
		{
			name: "code id becomes number",
			msg:  `{"token_code_id": "${codes.cw20_base}", "pair_configs": [{"code_id": "${codes.pair}", "total_fee_bps": 30}]}`,
			want: `{"token_code_id": 1, "pair_configs": [{"code_id": 2, "total_fee_bps": 30}]}`,
		},
		{
			name: "embedded code id stays string",
			msg:  `{"label": "pair-${codes.pair}"}`,
			want: `{"label": "pair-2"}`,
		},
		{
			name: "captured value and chain id",
			msg:  `{"lp_token": "${values.grain_dex_lp}", "note": "${chain_id}/${sender}"}`,
			want: `{"lp_token": "paloma1lp", "note": "paloma-testnet-15/paloma1sender"}`,
		},
		{
			name: "large numbers untouched",
			msg:  `{"amount": 123456789012345678901234567890, "ratio": 0.25}`,
			want: `{"amount": 123456789012345678901234567890, "ratio": 0.25}`,
		},
		{
			name:    "unknown contract",
			msg:     `{"router": "${contracts.router}"}`,
			wantErr: ErrUnresolvedReference,
		},
		{
			name:    "unknown namespace",
			msg:     `{"x": "${other.y}"}`,
			wantErr: ErrUnresolvedReference,
		},
		{
			name:    "not an object",
			msg:     `["${sender}"]`,
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "not json",
			msg:     `{owner:`,
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "second object",
			msg:     `{"a": 1}{"b": 2}`,
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "trailing garbage",
			msg:     `{"a": 1} x`,
			wantErr: ErrInvalidMessage,
		},
		{
			name: "trailing whitespace",
			msg:  "{\"a\": 1}\n  ",
			want: `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve([]byte(tt.msg), testScope())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestResolveString(t *testing.T) {
	got, err := ResolveString("${contracts.factory}", testScope())
	require.NoError(t, err)
	assert.Equal(t, "paloma1factory", got)

	got, err = ResolveString("100ugrain", testScope())
	require.NoError(t, err)
	assert.Equal(t, "100ugrain", got)

	_, err = ResolveString("${values.missing}", testScope())
	assert.ErrorIs(t, err, ErrUnresolvedReference)

	_, err = ResolveString("${sender}", Scope{})
	assert.ErrorIs(t, err, ErrUnresolvedReference)
}

func TestReferences(t *testing.T) {
	assert.Equal(t, []string{"contracts.factory", "sender"}, References(`{"a":"${contracts.factory}","b":"x-${sender}"}`))
	assert.Empty(t, References("plain"))
}
