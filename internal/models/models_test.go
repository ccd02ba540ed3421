package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveDocument_RoundTrip(t *testing.T) {
	raw := `{"level":5,"coins":120,"name":"Марио <3","items":["mushroom"],"big":12345678901234567890}`

	doc, err := DecodeSaveDocument([]byte(raw))
	require.NoError(t, err)

	encoded, err := doc.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, raw, encoded)
	// 非ASCII和HTML字符原样保留
	assert.Contains(t, encoded, "Марио <3")
	// 大整数不丢精度
	assert.Contains(t, encoded, "12345678901234567890")
}

func TestDecodeSaveDocument_Invalid(t *testing.T) {
	for _, raw := range []string{``, `[1,2]`, `"text"`, `null`, `{"level":`, `{} {}`} {
		_, err := DecodeSaveDocument([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestSaveDocument_IntFields(t *testing.T) {
	tests := []struct {
		name    string
		doc     SaveDocument
		level   int
		levelOK bool
		coins   int
		coinsOK bool
	}{
		{"json数字", SaveDocument{"level": json.Number("5"), "coins": json.Number("120")}, 5, true, 120, true},
		{"整数值浮点", SaveDocument{"level": 7.0, "coins": json.Number("3.0")}, 7, true, 3, true},
		{"非整数", SaveDocument{"level": 2.5, "coins": json.Number("1e400")}, 0, false, 0, false},
		{"缺失", SaveDocument{}, 0, false, 0, false},
		{"类型错误", SaveDocument{"level": "5", "coins": true}, 0, false, 0, false},
		{"null", SaveDocument{"level": nil}, 0, false, 0, false},
		{"go整数", SaveDocument{"level": 9, "coins": int64(10)}, 9, true, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := tt.doc.Level()
			assert.Equal(t, tt.levelOK, ok)
			assert.Equal(t, tt.level, level)

			coins, ok := tt.doc.Coins()
			assert.Equal(t, tt.coinsOK, ok)
			assert.Equal(t, tt.coins, coins)
		})
	}
}

func TestDisplayNameOr(t *testing.T) {
	assert.Equal(t, "Mario", DisplayNameOr("Mario", 42))
	assert.Equal(t, "user42", DisplayNameOr("", 42))
	assert.Equal(t, "user42", DisplayNameOr("   ", 42))
	assert.Equal(t, "user-3", PlaceholderName(-3))
}
