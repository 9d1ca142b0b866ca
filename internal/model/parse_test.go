package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatement(t *testing.T) {
	tests := []struct {
		name string
		code string
		want Statement
	}{
		{
			name: "simple set",
			code: "set GD_Foo.Bar Damage 5",
			want: Statement{Kind: KindSetCommand, Object: "GD_Foo.Bar", Field: "Damage", Value: "5"},
		},
		{
			name: "value keeps inner spaces",
			code: "  SET Obj Names (\"a b\", \"c\")  ",
			want: Statement{Kind: KindSetCommand, Object: "Obj", Field: "Names", Value: "(\"a b\", \"c\")"},
		},
		{
			name: "empty value",
			code: "set Obj Field",
			want: Statement{Kind: KindSetCommand, Object: "Obj", Field: "Field"},
		},
		{
			name: "set_cmp with grouped compare",
			code: "set_cmp Obj Field (A=1, B=(C=2)) (A=3)",
			want: Statement{Kind: KindSetCMPCommand, Object: "Obj", Field: "Field", CompareValue: "(A=1, B=(C=2))", Value: "(A=3)"},
		},
		{
			name: "set_cmp with quoted paren",
			code: "set_cmp Obj Field (Name=\"x)y\") 2",
			want: Statement{Kind: KindSetCMPCommand, Object: "Obj", Field: "Field", CompareValue: "(Name=\"x)y\")", Value: "2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatement(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatement_Errors(t *testing.T) {
	for _, code := range []string{
		"",
		"say Obj Field 1",
		"set Obj",
		"set_cmp Obj Field",
	} {
		_, err := ParseStatement(code)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, code)
		assert.Equal(t, "statement", ve.Field)
	}
}
