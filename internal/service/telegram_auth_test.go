package service

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
)

// buildInitData signs a field set the way Telegram does, so the validator
// sees a genuine payload.
func buildInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()
	var parts []string
	for k, v := range fields {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	dataString := strings.Join(parts, "\n")

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(dataString))
	hash := hex.EncodeToString(mac.Sum(nil))

	vals := url.Values{}
	for k, v := range fields {
		vals.Add(k, v)
	}
	vals.Add("hash", hash)
	return vals.Encode()
}

func TestValidateTelegramInitData_Valid(t *testing.T) {
	botToken := "test-bot-token"
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      `{"id":1,"username":"u","first_name":"F"}`,
	}

	initData := buildInitData(t, botToken, fields)

	vals, ok := ValidateTelegramInitData(initData, botToken)
	if !ok {
		t.Fatalf("expected valid init data")
	}
	if vals.Get("user") == "" {
		t.Fatalf("expected user field in values")
	}
}

func TestValidateTelegramInitData_Tampered(t *testing.T) {
	botToken := "test-bot-token"
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      `{"id":1,"username":"u","first_name":"F"}`,
	}
	initData := buildInitData(t, botToken, fields)

	// an extra field breaks the hash
	tampered := initData + "&x=1"

	_, ok := ValidateTelegramInitData(tampered, botToken)
	if ok {
		t.Fatalf("expected tampered init data to be invalid")
	}
}

func TestValidateTelegramInitData_Stale(t *testing.T) {
	botToken := "test-bot-token"
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Add(-2*time.Hour).Unix(), 10),
		"user":      `{"id":1}`,
	}
	initData := buildInitData(t, botToken, fields)

	_, ok := ValidateTelegramInitData(initData, botToken)
	if ok {
		t.Fatalf("expected stale init data to be rejected")
	}
}

func TestParseInitDataUser(t *testing.T) {
	vals := url.Values{}
	vals.Set("user", `{"id":42,"username":"bob","first_name":"Bob","last_name":"💎","is_premium":true}`)

	u, ok := ParseInitDataUser(vals)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if u.ID != 42 || u.Username != "bob" || !u.IsPremium {
		t.Fatalf("unexpected user: %+v", u)
	}

	vals.Set("user", `{"username":"noid"}`)
	if _, ok := ParseInitDataUser(vals); ok {
		t.Fatalf("expected user without id to be rejected")
	}
}

func TestParseStartParam(t *testing.T) {
	cases := []struct {
		in string
		id int64
		ok bool
	}{
		{"ref_12345", 12345, true},
		{"12345", 12345, true},
		{"ref_", 0, false},
		{"", 0, false},
		{"ref_abc", 0, false},
		{"ref_-5", 0, false},
	}
	for _, c := range cases {
		id, ok := ParseStartParam(c.in)
		if id != c.id || ok != c.ok {
			t.Fatalf("ParseStartParam(%q) = %d %v, want %d %v", c.in, id, ok, c.id, c.ok)
		}
	}
}
