// Package risk scores device fingerprint drift.
//
// Scoring is additive: every changed dimension contributes its configured
// weight once. A score strictly above the medium threshold flags the
// session; strictly above the high threshold forces rotation.
//
// # What this package must NOT do
//
//   - Mutate sessions. The session store applies assessments.
//   - Keep per-session history.
package risk
