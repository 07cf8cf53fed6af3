// Package ledger holds the in-memory accounts and is the only place balances
// change. Reads return copies; Transfer is the single mutator and runs under
// the ledger's write lock, so an observer never sees one side of a transfer
// applied without the other.
package ledger
