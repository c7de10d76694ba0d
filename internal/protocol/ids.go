package protocol

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

var (
	idMu  sync.Mutex
	idRNG = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NewCommandID generates a command identifier of the form
// cmd_<ms-since-epoch>_<4-char-base36>. Uniqueness within an agent
// session comes from the timestamp plus the random suffix.
func NewCommandID() string {
	idMu.Lock()
	defer idMu.Unlock()

	var suffix [4]byte
	for i := range suffix {
		suffix[i] = base36[idRNG.Intn(len(base36))]
	}

	var b strings.Builder
	b.WriteString("cmd_")
	b.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 10))
	b.WriteByte('_')
	b.Write(suffix[:])
	return b.String()
}

// ElementID formats a counter-assigned element id (a_<base36 counter>).
func ElementID(counter uint64) string {
	return "a_" + strconv.FormatUint(counter, 36)
}

// DOMElementID formats an id derived from a unique DOM id attribute
// (e_<dom-id>).
func DOMElementID(domID string) string {
	return "e_" + domID
}
