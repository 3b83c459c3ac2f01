// Package contract is the gateway's boundary with the election contract.
//
// Client wraps a JSON-RPC backend with the three capabilities the gateway needs:
//   - Submit a state-changing call (signed with the gateway's transaction key)
//   - WaitSettled for the transaction to be mined
//   - View a read-only method
//
// Every error leaving this package has been through ClassifyError, which turns reverts and
// transport failures into a *contract.Error with a Kind the HTTP layer can map to a status.
// Revert reasons are matched, in order, against custom errors declared in the ABI, the standard
// Error(string) revert payload and finally a table of known revert message fragments.
package contract
