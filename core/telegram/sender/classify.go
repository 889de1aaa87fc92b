package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/telegram/netutil"
)

// Delivery classes returned by Classify.
const (
	ClassUnreachable = "unreachable"
	ClassRateLimited = "rate_limited"
	ClassTransient   = "transient"
	ClassUnknown     = "unknown"
)

var unreachableMarkers = []string{
	"chat not found",
	"user not found",
	"bot was blocked",
	"user is deactivated",
	"bot can't initiate conversation",
}

// Classify maps a failed Bot API call onto a delivery class. A recipient
// that blocked the bot or no longer exists is unreachable. Flood control is
// rate_limited. Network and server faults are transient.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if _, ok := asFlood(err); ok {
		return ClassRateLimited
	}
	switch status := apiStatus(err); {
	case status == http.StatusForbidden:
		return ClassUnreachable
	case status == http.StatusTooManyRequests:
		return ClassRateLimited
	case status >= 500:
		return ClassTransient
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range unreachableMarkers {
		if strings.Contains(msg, marker) {
			return ClassUnreachable
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || netutil.ShouldRetry(err) {
		return ClassTransient
	}
	switch errorKind(err) {
	case "timeout", "dns", "dial", "tls":
		return ClassTransient
	}
	return ClassUnknown
}

func retryable(err error) bool {
	if _, ok := asFlood(err); ok {
		return true
	}
	return netutil.ShouldRetry(err) || apiStatus(err) >= 500
}

func retryAfter(err error) time.Duration {
	if flood, ok := asFlood(err); ok && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return 0
}

func asFlood(err error) (tele.FloodError, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return flood, true
	}
	var floodPtr *tele.FloodError
	if errors.As(err, &floodPtr) && floodPtr != nil {
		return *floodPtr, true
	}
	return flood, false
}

// errorKind is a finer label than Classify for the failure log line.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "dial"
	}
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}
	switch status := apiStatus(err); {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// apiStatus extracts the Bot API error code, falling back to the "(NNN)"
// suffix telebot puts on error strings.
func apiStatus(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	if _, ok := asFlood(err); ok {
		return http.StatusTooManyRequests
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}
	msg := err.Error()
	open, end := strings.LastIndex(msg, "("), strings.LastIndex(msg, ")")
	if open < 0 || end <= open+1 {
		return 0
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : end]))
	if convErr != nil {
		return 0
	}
	return code
}

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// redactToken renders err with any bot token masked.
func redactToken(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
