package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:TEST-token"

// sign подписывает поля так же, как клиент Telegram.
func sign(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

func signedInitData(t *testing.T, authDate time.Time, user, startParam string) string {
	t.Helper()
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("query_id", "AAH")
	values.Set("user", user)
	if startParam != "" {
		values.Set("start_param", startParam)
	}
	values.Set("hash", sign(values, testBotToken))
	return values.Encode()
}

func TestValidator_Parse(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	v := NewValidator(testBotToken, 24*time.Hour)
	v.now = func() time.Time { return now }

	raw := signedInitData(t, now.Add(-time.Hour), `{"id":42,"first_name":"Иван","username":"ivan"}`, "REF12345")

	data, err := v.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(42), data.User.ID)
	assert.Equal(t, "Иван", data.User.FirstName)
	assert.Equal(t, "ivan", data.User.Username)
	assert.Equal(t, "REF12345", data.StartParam)
	assert.Equal(t, "AAH", data.QueryID)
}

func TestValidator_ParseErrors(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	user := `{"id":42,"first_name":"Иван"}`

	tampered, err := url.ParseQuery(signedInitData(t, now, user, ""))
	require.NoError(t, err)
	tampered.Set("user", `{"id":43,"first_name":"Иван"}`)

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "empty", raw: "  ", wantErr: ErrEmptyInitData},
		{name: "no hash", raw: "auth_date=1&user=%7B%7D", wantErr: ErrMissingHash},
		{name: "tampered", raw: tampered.Encode(), wantErr: ErrInvalidHash},
		{name: "expired", raw: signedInitData(t, now.Add(-25*time.Hour), user, ""), wantErr: ErrExpired},
		{name: "no user id", raw: signedInitData(t, now, `{"first_name":"x"}`, ""), wantErr: ErrMissingUser},
	}

	v := NewValidator(testBotToken, 24*time.Hour)
	v.now = func() time.Time { return now }

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Parse(tt.raw)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidator_DevModeSkipsSignature(t *testing.T) {
	v := NewValidator("", time.Hour)
	assert.True(t, v.SkipsSignature())

	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	values.Set("user", `{"id":7,"first_name":"Dev"}`)

	data, err := v.Parse(values.Encode())
	require.NoError(t, err)
	assert.Equal(t, int64(7), data.User.ID)
}

func TestValidator_DevModeStillRequiresAuthDate(t *testing.T) {
	v := NewValidator("", time.Hour)

	values := url.Values{}
	values.Set("user", `{"id":7,"first_name":"Dev"}`)

	_, err := v.Parse(values.Encode())
	assert.ErrorIs(t, err, ErrMissingAuthDate)
}

func TestValidator_WrongBotToken(t *testing.T) {
	now := time.Now()
	raw := signedInitData(t, now, `{"id":42,"first_name":"Иван"}`, "")

	v := NewValidator("654321:OTHER-token", time.Hour)
	_, err := v.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidHash)
}
