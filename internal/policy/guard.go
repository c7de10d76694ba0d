package policy

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/pageplane/pageplane/internal/protocol"
)

var paymentPatterns = []string{
	"checkout", "payment", "purchase", "buy now", "place order",
	"confirm order", "submit order", "pay $",
}

var deletePatterns = []string{
	"delete", "remove", "clear all", "destroy", "erase",
}

// Guard applies the admission policy to commands. The rate-limit history
// is a single append-only timestamp list shared across every tab and
// controller, pruned to the 60-second window on each check.
type Guard struct {
	mu      sync.Mutex
	cfg     Config
	history []time.Time
	now     func() time.Time
	log     *zap.Logger
}

// NewGuard creates a guard with the given starting config.
func NewGuard(cfg Config, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{cfg: cfg, now: time.Now, log: log}
}

// SetClock replaces the time source for tests.
func (g *Guard) SetClock(now func() time.Time) { g.now = now }

// Config returns the current policy.
func (g *Guard) Config() Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

// SetConfig swaps the policy at runtime.
func (g *Guard) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
	return nil
}

// RateCounts reports the current window occupancy (last second, last
// minute) for the status surface.
func (g *Guard) RateCounts() (perSecond, perMinute int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.prune(now)
	return g.countSince(now.Add(-time.Second)), len(g.history)
}

// Check admits or denies one command. Checks run in order: domain, rate
// limit, action-name patterns. A nil return means the command was
// admitted and counted against the rate window. targetName is the
// looked-up candidate name, empty when unknown.
func (g *Guard) Check(cmd protocol.Command, tabURL, targetName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkDomain(tabURL); err != nil {
		g.audit(cmd, "denied", err.Error())
		return err
	}

	now := g.now()
	g.prune(now)
	if len(g.history) >= g.cfg.MaxCommandsPerMinute {
		err := protocol.Denied("Rate limit exceeded: %d commands per minute", g.cfg.MaxCommandsPerMinute)
		g.audit(cmd, "denied", err.Reason)
		return err
	}
	if g.countSince(now.Add(-time.Second)) >= g.cfg.MaxCommandsPerSecond {
		err := protocol.Denied("Rate limit exceeded: %d commands per second", g.cfg.MaxCommandsPerSecond)
		g.audit(cmd, "denied", err.Reason)
		return err
	}

	if err := g.checkName(cmd, targetName); err != nil {
		g.audit(cmd, "denied", err.Error())
		return err
	}

	g.history = append(g.history, now)
	g.audit(cmd, "allowed", "")
	return nil
}

// checkDomain applies the domain mode to the tab url's host. Malformed
// urls fail closed in every mode except "all".
func (g *Guard) checkDomain(tabURL string) error {
	if g.cfg.DomainMode == DomainAll {
		return nil
	}
	host := hostOf(tabURL)
	listed := host != "" && g.inList(host)

	switch g.cfg.DomainMode {
	case DomainAllowlist:
		if !listed {
			return protocol.Denied("Domain not allowed: %s", tabURL)
		}
	case DomainBlocklist:
		if host == "" || listed {
			return protocol.Denied("Domain blocked: %s", tabURL)
		}
	}
	return nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// inList matches host against each entry: exact host, subdomain of the
// entry, or a doublestar glob.
func (g *Guard) inList(host string) bool {
	for _, entry := range g.cfg.DomainList {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.ContainsAny(entry, "*?[") {
			if ok, err := doublestar.Match(entry, host); err == nil && ok {
				return true
			}
			continue
		}
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}

// checkName applies payment/delete patterns, only to click and type
// commands and only when the target's name is known.
func (g *Guard) checkName(cmd protocol.Command, name string) error {
	if cmd.Type != protocol.TypeClick && cmd.Type != protocol.TypeType {
		return nil
	}
	if name == "" {
		return nil
	}
	lower := strings.ToLower(name)
	if g.cfg.BlockPaymentActions {
		for _, p := range paymentPatterns {
			if strings.Contains(lower, p) {
				return protocol.Denied("Payment action blocked: %q", name)
			}
		}
	}
	if g.cfg.BlockDeleteActions {
		for _, p := range deletePatterns {
			if strings.Contains(lower, p) {
				return protocol.Denied("Destructive action blocked: %q", name)
			}
		}
	}
	return nil
}

func (g *Guard) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(g.history) && !g.history[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.history = append(g.history[:0], g.history[i:]...)
	}
}

func (g *Guard) countSince(cutoff time.Time) int {
	n := 0
	for i := len(g.history) - 1; i >= 0; i-- {
		if g.history[i].After(cutoff) {
			n++
		} else {
			break
		}
	}
	return n
}

// audit emits one structured line per decision when enabled. Failures
// are always logged; permitted commands only under LogAllCommands.
func (g *Guard) audit(cmd protocol.Command, outcome, reason string) {
	if outcome == "allowed" && !g.cfg.LogAllCommands {
		return
	}
	g.log.Info("command audit",
		zap.String("commandId", cmd.CommandID),
		zap.String("type", cmd.Type),
		zap.Int("tabId", cmd.TabID),
		zap.String("outcome", outcome),
		zap.String("reason", reason),
	)
}
