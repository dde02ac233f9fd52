package bridge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bjaus/bridge"
)

func TestHeader_canonical_keys(t *testing.T) {
	t.Parallel()

	h := bridge.Header{}
	h.Set("content-type", "application/json")

	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "application/json", h.Get("CONTENT-TYPE"))
}

func TestHeader_add_accumulates_values(t *testing.T) {
	t.Parallel()

	h := bridge.Header{}
	h.Add("accept", "application/json")
	h.Add("Accept", "text/html")

	assert.Equal(t, []string{"application/json", "text/html"}, h.Values("accept"))
	assert.Equal(t, "application/json", h.Get("accept"))
}

func TestHeader_del(t *testing.T) {
	t.Parallel()

	h := bridge.Header{}
	h.Set("X-Token", "secret")
	h.Del("x-token")

	assert.Empty(t, h.Get("X-Token"))
}

func TestHeader_clone_is_deep(t *testing.T) {
	t.Parallel()

	h := bridge.Header{}
	h.Add("Accept", "application/json")

	clone := h.Clone()
	clone.Add("Accept", "text/html")

	assert.Len(t, h.Values("Accept"), 1)
	assert.Len(t, clone.Values("Accept"), 2)
}

func TestHeader_nil_get(t *testing.T) {
	t.Parallel()

	var h bridge.Header
	assert.Empty(t, h.Get("Anything"))
	assert.Nil(t, h.Values("Anything"))
}

func TestSplitCookies_two_cookies(t *testing.T) {
	t.Parallel()

	got := bridge.SplitCookies("a=1, b=2")
	assert.Equal(t, []string{"a=1", "b=2"}, got)
}

func TestSplitCookies_single_cookie(t *testing.T) {
	t.Parallel()

	got := bridge.SplitCookies("session=abc123; Path=/; HttpOnly")
	assert.Equal(t, []string{"session=abc123; Path=/; HttpOnly"}, got)
}

func TestSplitCookies_expires_comma_survives(t *testing.T) {
	t.Parallel()

	combined := "s=x; Expires=Wed, 21 Oct 2015 07:28:00 GMT; Path=/, t=y; Secure"
	got := bridge.SplitCookies(combined)

	assert.Equal(t, []string{
		"s=x; Expires=Wed, 21 Oct 2015 07:28:00 GMT; Path=/",
		"t=y; Secure",
	}, got)
}

func TestSplitCookies_three_cookies_mixed(t *testing.T) {
	t.Parallel()

	combined := "a=1; Max-Age=60, b=2; Expires=Thu, 01 Jan 1970 00:00:00 GMT, c=3"
	got := bridge.SplitCookies(combined)

	assert.Equal(t, []string{
		"a=1; Max-Age=60",
		"b=2; Expires=Thu, 01 Jan 1970 00:00:00 GMT",
		"c=3",
	}, got)
}

func TestSplitCookies_empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, bridge.SplitCookies(""))
}
