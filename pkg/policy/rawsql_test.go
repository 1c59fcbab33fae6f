package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRaw(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr bool
		token   string
	}{
		{name: "simple expression", sql: "COUNT(*) AS total"},
		{name: "comparison with binding", sql: "age > ? AND status = ?"},
		{name: "keyword inside literal", sql: "note = 'please drop by'"},
		{name: "keyword as substring", sql: "updated_at > created_at"},
		{name: "escaped quote literal", sql: "name = 'O''Brien'"},
		{name: "quoted identifier", sql: `"delete_flag" = false`},
		{name: "drop", sql: "1=1 DROP TABLE users", wantErr: true, token: "DROP"},
		{name: "lowercase delete", sql: "x in (delete from t)", wantErr: true, token: "delete"},
		{name: "semicolon", sql: "1=1; SELECT 1", wantErr: true, token: ";"},
		{name: "line comment", sql: "1=1 -- trailing", wantErr: true, token: "--"},
		{name: "block comment", sql: "1=1 /* x */", wantErr: true, token: "/*"},
		{name: "block comment close", sql: "1=1 */", wantErr: true, token: "*/"},
		{name: "exec", sql: "EXEC sp_who", wantErr: true, token: "EXEC"},
		{name: "extended procedure", sql: "xp_cmdshell 'dir'", wantErr: true, token: "xp_cmdshell"},
		{name: "batch separator", sql: "1=1 GO", wantErr: true, token: "GO"},
		{name: "unterminated literal", sql: "name = 'abc", wantErr: true, token: "unterminated string literal"},
		{name: "comment inside literal is fine", sql: "path = 'a--b'"},
		{name: "positional placeholder", sql: "id = $1 AND name = $2"},
		{name: "replace", sql: "REPLACE INTO users VALUES (1)", wantErr: true, token: "REPLACE"},
		{name: "escape string hides batch", sql: `name = E'\''); DROP TABLE users; SELECT ('`, wantErr: true, token: "backslash in string literal"},
		{name: "backslash in plain literal", sql: `name = 'a\b'`, wantErr: true, token: "backslash in string literal"},
		{name: "dollar quote hides batch", sql: "name = $$'$$); DROP TABLE users; SELECT ($$'$$", wantErr: true, token: "dollar-quoted string"},
		{name: "tagged dollar quote", sql: "name = $tag$x$tag$", wantErr: true, token: "dollar-quoted string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRaw("whereRaw", tt.sql)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSecurityViolation))
			var violation *ViolationError
			require.True(t, errors.As(err, &violation))
			assert.Equal(t, "whereRaw", violation.Name)
			assert.Contains(t, violation.Reason, tt.token)
		})
	}
}
