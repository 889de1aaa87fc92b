// Package callbacks decodes the callback data telebot attaches to inline
// buttons: "\f<unique>|<payload>".
package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Data is a decoded callback: the route key and whatever followed it.
type Data struct {
	Unique  string
	Payload string
}

// Parse decodes cb. Callbacks already routed by telebot carry Unique and the
// bare payload; raw ones still hold the full encoding in Data.
func Parse(cb *tele.Callback) Data {
	if cb == nil {
		return Data{}
	}
	if cb.Unique != "" {
		return Data{Unique: cb.Unique, Payload: cb.Data}
	}
	unique, payload, _ := strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return Data{Unique: strings.TrimSpace(unique), Payload: payload}
}

// Of decodes the callback of c.
func Of(c tele.Context) Data { return Parse(c.Callback()) }

// Int64 parses the payload as a decimal id.
func (d Data) Int64() (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(d.Payload), 10, 64)
}

// Encode builds callback data in the form telebot routes on.
func Encode(unique, payload string) string {
	if payload == "" {
		return "\f" + unique
	}
	return "\f" + unique + "|" + payload
}
