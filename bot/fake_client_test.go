package bot

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tgsender "github.com/m3rciful/relaybot/core/telegram/sender"
)

const (
	testOwnerID    int64 = 1
	testAdminGroup int64 = -1001
	testThreadID         = 5
)

type sentMessage struct {
	chatID int64
	text   string
	opts   *tele.SendOptions
}

type editedMessage struct {
	msg  tele.Editable
	text string
	opts *tele.SendOptions
}

// fakeClient records Bot API calls made outside a handler's own chat.
type fakeClient struct {
	mu        sync.Mutex
	nextID    int
	sent      []sentMessage
	edits     []editedMessage
	answers   []*tele.CallbackResponse
	sendErr   map[int64]error
	member    *tele.ChatMember
	memberErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{sendErr: map[int64]error{}}
}

func optionsFrom(opts []interface{}) *tele.SendOptions {
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			return so
		}
	}
	return nil
}

func (f *fakeClient) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chatID, err := strconv.ParseInt(to.Recipient(), 10, 64)
	if err != nil {
		return nil, err
	}
	if err := f.sendErr[chatID]; err != nil {
		return nil, err
	}
	text, _ := what.(string)
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, opts: optionsFrom(opts)})
	f.nextID++
	return &tele.Message{ID: f.nextID, Chat: &tele.Chat{ID: chatID}, Text: text}, nil
}

func (f *fakeClient) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, _ := what.(string)
	f.edits = append(f.edits, editedMessage{msg: msg, text: text, opts: optionsFrom(opts)})
	return &tele.Message{Text: text}, nil
}

func (f *fakeClient) Respond(_ *tele.Callback, resp ...*tele.CallbackResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(resp) > 0 {
		f.answers = append(f.answers, resp[0])
	}
	return nil
}

func (f *fakeClient) ChatMemberOf(_, _ tele.Recipient) (*tele.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.member, f.memberErr
}

func (f *fakeClient) sentTo(chatID int64) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeClient) lastAnswer() *tele.CallbackResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return nil
	}
	return f.answers[len(f.answers)-1]
}

func testConfig() *Config {
	cfg := &Config{}
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.AdminID = testOwnerID
	cfg.Relay = RelayConfig{
		AdminGroupID:  testAdminGroup,
		AdminThreadID: testThreadID,
		MaxChars:      50,
		SuspendDays:   7,
		Timezone:      "UTC",
	}
	cfg.Storage.Backend = BackendMemory
	return cfg
}

// newTestApp wires an App on memory stores and a recording client. The
// dispatcher does not retry so failures surface immediately.
func newTestApp(t *testing.T, mutate func(*Config)) (*App, *fakeClient) {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	st, err := openStores(context.Background(), cfg.Storage, nil)
	require.NoError(t, err)
	app, err := newApp(cfg, st)
	require.NoError(t, err)

	app.sender.Close()
	app.sender = tgsender.NewDispatcher(tgsender.Options{RetryBackoff: time.Millisecond})
	t.Cleanup(app.sender.Close)

	fc := newFakeClient()
	app.client = fc
	return app, fc
}

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b
}

func privateText(b *tele.Bot, user *tele.User, text string) tele.Context {
	return b.NewContext(tele.Update{Message: &tele.Message{
		ID:     1,
		Sender: user,
		Chat:   &tele.Chat{ID: user.ID, Type: tele.ChatPrivate},
		Text:   text,
	}})
}

func cardCallback(b *tele.Bot, moderatorID int64, data string) tele.Context {
	return b.NewContext(tele.Update{Callback: &tele.Callback{
		ID:     "cb",
		Sender: &tele.User{ID: moderatorID, FirstName: "Mod"},
		Message: &tele.Message{
			ID:   10,
			Chat: &tele.Chat{ID: testAdminGroup, Type: tele.ChatSuperGroup},
			Text: "card",
		},
		Data: data,
	}})
}
