package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		cb   *tele.Callback
		want Data
	}{
		{name: "nil", cb: nil},
		{name: "raw", cb: &tele.Callback{Data: "\faccept|1001"}, want: Data{Unique: "accept", Payload: "1001"}},
		{name: "no payload", cb: &tele.Callback{Data: "\fnoop"}, want: Data{Unique: "noop"}},
		{name: "routed", cb: &tele.Callback{Unique: "reply", Data: "42"}, want: Data{Unique: "reply", Payload: "42"}},
		{name: "payload keeps separators", cb: &tele.Callback{Data: "\fx|a|b"}, want: Data{Unique: "x", Payload: "a|b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.cb))
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	d := Parse(&tele.Callback{Data: Encode("suspend", "1001")})
	assert.Equal(t, "suspend", d.Unique)
	id, err := d.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(1001), id)
	assert.Equal(t, "\fnoop", Encode("noop", ""))
}

func TestInt64RejectsGarbage(t *testing.T) {
	_, err := Data{Unique: "accept", Payload: "nope"}.Int64()
	assert.Error(t, err)
}
