package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageplane/pageplane/internal/protocol"
)

func click(name string) protocol.Command {
	_ = name
	return protocol.Command{Type: protocol.TypeClick, CommandID: protocol.NewCommandID(), TabID: 1, ID: "a_0"}
}

func newGuard(cfg Config) *Guard {
	return NewGuard(cfg, nil)
}

func TestDomainAllPasses(t *testing.T) {
	g := newGuard(DefaultConfig())
	assert.NoError(t, g.Check(click(""), "https://anything.example/", ""))
	assert.NoError(t, g.Check(click(""), "not a url", ""), "mode all ignores malformed urls")
}

func TestDomainAllowlist(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DomainMode = DomainAllowlist
	cfg.DomainList = []string{"example.com"}
	g := newGuard(cfg)

	assert.NoError(t, g.Check(click(""), "https://example.com/x", ""))
	assert.NoError(t, g.Check(click(""), "https://sub.example.com/x", ""), "subdomain allowed")

	err := g.Check(click(""), "https://other.com/", "")
	require.Error(t, err)
	reason, ok := protocol.IsPolicyDenied(err)
	require.True(t, ok)
	assert.Contains(t, reason, "Domain not allowed")

	assert.Error(t, g.Check(click(""), "://malformed", ""), "malformed url fails closed")
}

func TestDomainAllowlistScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DomainMode = DomainAllowlist
	cfg.DomainList = []string{"b.com"}
	g := newGuard(cfg)

	err := g.Check(click(""), "https://a/", "")
	require.Error(t, err)
	reason, _ := protocol.IsPolicyDenied(err)
	assert.Equal(t, "Domain not allowed: https://a/", reason)
}

func TestDomainBlocklist(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DomainMode = DomainBlocklist
	cfg.DomainList = []string{"blocked.com"}
	g := newGuard(cfg)

	assert.NoError(t, g.Check(click(""), "https://fine.com/", ""))
	assert.Error(t, g.Check(click(""), "https://blocked.com/", ""))
	assert.Error(t, g.Check(click(""), "https://deep.blocked.com/", ""))
	assert.Error(t, g.Check(click(""), "://malformed", ""), "malformed url fails closed")
}

func TestDomainGlobEntries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DomainMode = DomainAllowlist
	cfg.DomainList = []string{"*.internal.test"}
	g := newGuard(cfg)

	assert.NoError(t, g.Check(click(""), "https://app.internal.test/", ""))
	assert.Error(t, g.Check(click(""), "https://external.test/", ""))
}

func TestRateLimitPerSecond(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCommandsPerSecond = 1
	g := newGuard(cfg)

	now := time.Unix(1000, 0)
	g.SetClock(func() time.Time { return now })

	require.NoError(t, g.Check(click(""), "https://x.com/", ""))

	now = now.Add(500 * time.Millisecond)
	err := g.Check(click(""), "https://x.com/", "")
	require.Error(t, err)
	reason, _ := protocol.IsPolicyDenied(err)
	assert.Contains(t, reason, "per second")

	now = now.Add(time.Second)
	assert.NoError(t, g.Check(click(""), "https://x.com/", ""))
}

func TestRateLimitPerMinute(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCommandsPerMinute = 3
	cfg.MaxCommandsPerSecond = 100
	g := newGuard(cfg)

	now := time.Unix(2000, 0)
	g.SetClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Check(click(""), "https://x.com/", ""))
		now = now.Add(2 * time.Second)
	}

	err := g.Check(click(""), "https://x.com/", "")
	require.Error(t, err)
	reason, _ := protocol.IsPolicyDenied(err)
	assert.Contains(t, reason, "per minute")

	// The window slides: a minute after the first command there is room
	// again.
	now = now.Add(time.Minute)
	assert.NoError(t, g.Check(click(""), "https://x.com/", ""))
}

func TestDeniedCommandsDontCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCommandsPerSecond = 2
	g := newGuard(cfg)

	now := time.Unix(3000, 0)
	g.SetClock(func() time.Time { return now })

	require.Error(t, g.Check(click(""), "https://x.com/", "Delete everything"))
	_, perMin := g.RateCounts()
	assert.Equal(t, 0, perMin, "denied commands never join the history")
}

func TestPaymentPatterns(t *testing.T) {
	g := newGuard(DefaultConfig())
	for _, name := range []string{"Checkout", "Buy now", "Place Order", "Pay $9.99"} {
		err := g.Check(click(""), "https://shop.test/", name)
		require.Error(t, err, "name %q", name)
		reason, _ := protocol.IsPolicyDenied(err)
		assert.Contains(t, reason, "Payment")
	}
}

func TestDeletePatternsPerCommandType(t *testing.T) {
	g := newGuard(DefaultConfig())

	err := g.Check(click(""), "https://x.com/", "Delete account")
	assert.Error(t, err, "click on delete denied")

	typeCmd := protocol.Command{Type: protocol.TypeType, CommandID: protocol.NewCommandID(), TabID: 1, ID: "a_0"}
	assert.Error(t, g.Check(typeCmd, "https://x.com/", "Delete account"), "type on delete denied")

	hover := protocol.Command{Type: protocol.TypeHover, CommandID: protocol.NewCommandID(), TabID: 1, ID: "a_0"}
	assert.NoError(t, g.Check(hover, "https://x.com/", "Delete account"), "hover is never name-checked")
}

func TestPatternsSkippedWhenNameUnknown(t *testing.T) {
	g := newGuard(DefaultConfig())
	assert.NoError(t, g.Check(click(""), "https://x.com/", ""))
}

func TestPatternsConfigurable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockPaymentActions = false
	cfg.BlockDeleteActions = false
	g := newGuard(cfg)

	assert.NoError(t, g.Check(click(""), "https://x.com/", "Checkout"))
	assert.NoError(t, g.Check(click(""), "https://x.com/", "Delete account"))
}

func TestSetConfigValidates(t *testing.T) {
	g := newGuard(DefaultConfig())
	bad := DefaultConfig()
	bad.DomainMode = "whitelist"
	assert.Error(t, g.SetConfig(bad))

	good := DefaultConfig()
	good.DomainMode = DomainBlocklist
	require.NoError(t, g.SetConfig(good))
	assert.Equal(t, DomainBlocklist, g.Config().DomainMode)
}

func TestCheckIsPureUnderSameClock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DomainMode = DomainAllowlist
	cfg.DomainList = []string{"a.com"}
	g := newGuard(cfg)

	// Denials do not mutate guard state, so evaluation repeats.
	for i := 0; i < 5; i++ {
		err := g.Check(click(""), "https://b.com/", "")
		require.Error(t, err)
	}
}
