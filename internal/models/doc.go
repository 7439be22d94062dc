// Package models defines the core domain records for splitledger.
//
// # Records
//
//   - User: a registered account; the ledger calls it a member once it joins a group
//   - Group: a set of members that share expenses
//   - Expense: money one member paid on behalf of the group
//   - ExpenseSplit: one member's share of an expense
//   - Settlement: an append-only payment from a split owner to the expense payer
//
// # Design Principles
//
// 1. **Plain values**: relationships are ID strings, never pointers, so an
// expense loaded with its splits and settlements is a self-contained aggregate.
// 2. **Fixed-point money**: every amount is a money.Amount (integer cents).
// 3. **Immutability**: only Expense.IsSettled and ExpenseSplit.IsPaid change
// after creation, and only through a settlement.
package models
