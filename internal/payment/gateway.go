// Package payment builds and verifies hosted-checkout form posts signed with SHA-512.
package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// Gateway signs outgoing checkout forms and verifies callbacks.
type Gateway struct {
	Key        string
	Salt       string
	ActionURL  string
	SuccessURL string
	FailureURL string
}

// Checkout is what the browser posts to the gateway.
type Checkout struct {
	TxnID       string
	Amount      int64 // paise
	ProductInfo string
	FirstName   string
	Email       string
	Phone       string
	UDF1        string
	UDF2        string
}

// Form is the action URL plus the signed fields of a checkout.
type Form struct {
	Action string            `json:"action"`
	Fields map[string]string `json:"fields"`
}

// FormatAmount renders paise as rupees with two decimals, e.g. 149900 -> "1499.00".
func FormatAmount(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return fmt.Sprintf("%s%d.%02d", sign, paise/100, paise%100)
}

func digest(parts ...string) string {
	sum := sha512.Sum512([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// RequestHash signs key|txnid|amount|productinfo|firstname|email|udf1..udf5||||||salt.
func (g Gateway) RequestHash(c Checkout) string {
	return digest(
		g.Key, c.TxnID, FormatAmount(c.Amount), c.ProductInfo, c.FirstName, c.Email,
		c.UDF1, c.UDF2, "", "", "",
		"", "", "", "", "",
		g.Salt,
	)
}

// BuildForm returns the fields to auto-submit to the gateway.
func (g Gateway) BuildForm(c Checkout) Form {
	return Form{
		Action: g.ActionURL,
		Fields: map[string]string{
			"key":         g.Key,
			"txnid":       c.TxnID,
			"amount":      FormatAmount(c.Amount),
			"productinfo": c.ProductInfo,
			"firstname":   c.FirstName,
			"email":       c.Email,
			"phone":       c.Phone,
			"surl":        g.SuccessURL,
			"furl":        g.FailureURL,
			"udf1":        c.UDF1,
			"udf2":        c.UDF2,
			"hash":        g.RequestHash(c),
		},
	}
}

// Callback is the gateway's post-back to surl/furl.
type Callback struct {
	Status      string
	TxnID       string
	Amount      string
	ProductInfo string
	FirstName   string
	Email       string
	UDF1        string
	UDF2        string
	UDF3        string
	UDF4        string
	UDF5        string
	GatewayRef  string // mihpayid
	Hash        string
	Raw         map[string]string
}

// CallbackFromFields maps the posted form values onto a Callback.
func CallbackFromFields(f map[string]string) Callback {
	return Callback{
		Status:      f["status"],
		TxnID:       f["txnid"],
		Amount:      f["amount"],
		ProductInfo: f["productinfo"],
		FirstName:   f["firstname"],
		Email:       f["email"],
		UDF1:        f["udf1"],
		UDF2:        f["udf2"],
		UDF3:        f["udf3"],
		UDF4:        f["udf4"],
		UDF5:        f["udf5"],
		GatewayRef:  f["mihpayid"],
		Hash:        f["hash"],
		Raw:         f,
	}
}

// ResponseHash computes salt|status||||||udf5|udf4|udf3|udf2|udf1|email|firstname|productinfo|amount|txnid|key.
func (g Gateway) ResponseHash(cb Callback) string {
	return digest(
		g.Salt, cb.Status,
		"", "", "", "", "",
		cb.UDF5, cb.UDF4, cb.UDF3, cb.UDF2, cb.UDF1,
		cb.Email, cb.FirstName, cb.ProductInfo, cb.Amount, cb.TxnID,
		g.Key,
	)
}

// Verify compares the posted hash with the expected one in constant time.
func (g Gateway) Verify(cb Callback) bool {
	want := g.ResponseHash(cb)
	got := strings.ToLower(strings.TrimSpace(cb.Hash))
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
