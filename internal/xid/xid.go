package xid

import "github.com/google/uuid"

// New returns a prefixed identifier such as "item-3f0c…". The prefix keeps
// ids self-describing in logs and ledger references.
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
