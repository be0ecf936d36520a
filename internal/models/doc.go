// Package models defines the core domain models for pocketledger.
//
// # Models
//
//   - User: registered account; owns transactions
//   - Session: server-side record of an issued token, revoked on logout
//   - Transaction: an income or expense entry, optionally itemized
//   - DetailItem: one line item of a transaction's itemization
//
// # Design Principles
//
// 1. **Sign lives in the type**: amounts are never negative; TransactionType decides direction
// 2. **Derived balance**: no model stores a running total; balances are recomputed from transactions
// 3. **Avoid circular references**: relationships are ID strings, not pointers
// 4. **Exact money**: amounts are decimal.Decimal, never float64
package models
