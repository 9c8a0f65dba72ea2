package telegram

import (
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type initDataUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
}

// VerifyInitData проверяет initData мини-приложения.
// Окно свежести здесь не применяется, auth_date только возвращается в Claim.
func (v *Verifier) VerifyInitData(raw string) (*Claim, error) {
	const op = "telegram.VerifyInitData"

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidInitData)
	}
	hash := values.Get("hash")
	if hash == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidInitData)
	}
	values.Del("hash")

	var user initDataUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidInitData)
	}

	pairs := make(map[string]string, len(values))
	for k := range values {
		pairs[k] = values.Get(k)
	}
	expected := hex.EncodeToString(sign(v.webAppKey, []byte(checkString(pairs))))
	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidInitData, ErrInvalidSignature)
	}

	claim := &Claim{
		TelegramID:         user.ID,
		Username:           user.Username,
		FirstName:          user.FirstName,
		LastName:           user.LastName,
		PhotoURL:           user.PhotoURL,
		Mode:               ModeMiniApp,
		ReferrerTelegramID: parseStartParam(values.Get("start_param")),
	}
	if ts, err := strconv.ParseInt(values.Get("auth_date"), 10, 64); err == nil {
		claim.AuthDate = time.Unix(ts, 0)
	}
	return claim, nil
}

// parseStartParam достаёт Telegram ID пригласившего из start_param вида "ref_<id>" или "<id>".
func parseStartParam(param string) *int64 {
	param = strings.TrimPrefix(param, "ref_")
	if param == "" {
		return nil
	}
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}
