package relay

import (
	"reflect"
	"strings"
)

// Texts holds every user- and moderator-facing string. Placeholders in
// braces ({limit}, {days}, {until}, {tz}, {text}, {user}, {moderator}) are
// filled by Render.
type Texts struct {
	Start                 string `yaml:"start"`
	NotMember             string `yaml:"not_member"`
	MembershipCheckFailed string `yaml:"membership_check_failed"`
	TooLong               string `yaml:"too_long"`
	Suspended             string `yaml:"suspended"`
	SuspendedUntil        string `yaml:"suspended_until"`
	QuotaExceeded         string `yaml:"quota_exceeded"`
	Submitted             string `yaml:"submitted"`
	SubmitFailed          string `yaml:"submit_failed"`
	Failure               string `yaml:"failure"`
	RateLimited           string `yaml:"rate_limited"`

	Accepted        string `yaml:"accepted"`
	Rejected        string `yaml:"rejected"`
	SuspendedNotice string `yaml:"suspended_notice"`
	LiftedNotice    string `yaml:"lifted_notice"`
	ReplyHeader     string `yaml:"reply_header"`

	AwaitingReply   string `yaml:"awaiting_reply"`
	NotSuspended    string `yaml:"not_suspended"`
	UserUnreachable string `yaml:"user_unreachable"`
	ReplySent       string `yaml:"reply_sent"`
	ReplyFailed     string `yaml:"reply_failed"`
	ReplyCopy       string `yaml:"reply_copy"`
	NotModerator    string `yaml:"not_moderator"`
	ReplyCancelled  string `yaml:"reply_cancelled"`
	NoPendingReply  string `yaml:"no_pending_reply"`

	ModeratorUnreachable string `yaml:"moderator_unreachable"`

	CardTitle         string `yaml:"card_title"`
	CardName          string `yaml:"card_name"`
	CardID            string `yaml:"card_id"`
	CardUsername      string `yaml:"card_username"`
	CardNoUsername    string `yaml:"card_no_username"`
	CardTime          string `yaml:"card_time"`
	CardText          string `yaml:"card_text"`
	CardAccepted      string `yaml:"card_accepted"`
	CardRejected      string `yaml:"card_rejected"`
	CardSuspended     string `yaml:"card_suspended"`
	CardLifted        string `yaml:"card_lifted"`
	CardAwaitingReply string `yaml:"card_awaiting_reply"`

	BtnAccept  string `yaml:"btn_accept"`
	BtnReject  string `yaml:"btn_reject"`
	BtnReply   string `yaml:"btn_reply"`
	BtnSuspend string `yaml:"btn_suspend"`
	BtnLift    string `yaml:"btn_lift"`
}

// DefaultTexts returns the built-in English catalog.
func DefaultTexts() Texts {
	return Texts{
		Start: "👋 Hello! This bot delivers complaints and suggestions to the administrators.\n\n" +
			"📌 You can send one message per day.\n" +
			"✍️ Maximum length: {limit} characters.\n\n" +
			"📩 To receive the administrators' reply, keep this chat open and do not mute the bot.",
		NotMember:             "🚫 Sorry, you must be a member of the main group to use this bot.",
		MembershipCheckFailed: "❗ Could not verify your membership. Make sure you are a member of the group.",
		TooLong:               "⚠️ The maximum length is {limit} characters.",
		Suspended:             "🚫 You cannot send complaints right now. Wait until your suspension ends.",
		SuspendedUntil:        "🚫 You are suspended from sending complaints until {until} ({tz}).",
		QuotaExceeded:         "⚠️ You can send only one message per day. Try again tomorrow.",
		Submitted:             "✅ Your complaint was sent to the administration. You will be contacted when they reply.",
		SubmitFailed:          "❗ Could not deliver your complaint to the administration. Please try again tomorrow.",
		Failure:               "❗ Something went wrong. Please try again later.",
		RateLimited:           "⏳ Too many messages, please slow down.",

		Accepted:        "✅ Your complaint was accepted. Thank you for your cooperation!",
		Rejected:        "❌ Your complaint was rejected after review.",
		SuspendedNotice: "🚫 You have been suspended from sending complaints for {days} days.",
		LiftedNotice:    "🔓 Your suspension was lifted, you can send complaints again.",
		ReplyHeader:     "📩 Reply from the administration:\n{text}",

		AwaitingReply:   "📩 Send your reply here now and it will be forwarded to the user.",
		NotSuspended:    "ℹ️ The user is not suspended.",
		UserUnreachable: "⚠️ Could not send a private message to the user.",
		ReplySent:       "✅ Your reply was delivered to the user.",
		ReplyFailed:     "⚠️ Could not deliver the reply. The user may have blocked or never started the bot.",
		ReplyCopy:       "💬 Reply from {moderator} to user {user}:\n\n{text}",
		NotModerator:    "🚫 You are not allowed to moderate complaints.",
		ReplyCancelled:  "↩️ Reply cancelled, nothing was sent to the user.",
		NoPendingReply:  "ℹ️ You have no reply in progress.",

		ModeratorUnreachable: "⚠️ I cannot message you privately. Open a chat with the bot, press /start and try again.",

		CardTitle:         "📬 New complaint",
		CardName:          "👤 Name",
		CardID:            "🆔 ID",
		CardUsername:      "🗣️ Username",
		CardNoUsername:    "none",
		CardTime:          "🕓 Time",
		CardText:          "✉️ Text",
		CardAccepted:      "📢 Accepted ✅",
		CardRejected:      "📢 Rejected ❌",
		CardSuspended:     "⏸️ User suspended for {days} days",
		CardLifted:        "🔓 Suspension lifted",
		CardAwaitingReply: "💬 Awaiting a private reply from {moderator}",

		BtnAccept:  "✅ Accept",
		BtnReject:  "❌ Reject",
		BtnReply:   "💬 Reply",
		BtnSuspend: "⏸️ Suspend {days} days",
		BtnLift:    "🔓 Lift suspension",
	}
}

// WithOverrides returns a copy of t where every non-empty field of o wins.
func (t Texts) WithOverrides(o Texts) Texts {
	dst := reflect.ValueOf(&t).Elem()
	src := reflect.ValueOf(o)
	for i := 0; i < src.NumField(); i++ {
		if v := src.Field(i).String(); strings.TrimSpace(v) != "" {
			dst.Field(i).SetString(v)
		}
	}
	return t
}

// Render substitutes {name} placeholders using alternating name/value pairs.
func Render(tpl string, pairs ...string) string {
	if len(pairs) < 2 {
		return tpl
	}
	args := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		args = append(args, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(args...).Replace(tpl)
}
