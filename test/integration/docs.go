// Package integration contains end-to-end tests for the evote-gateway server.
//
// These tests run one or more in-process gateway replicas against a temporary postgres
// database and a shared miniredis instance, and check the behaviour that depends on that
// shared state: token revocation, rate limits and database readiness.
//
// The election contract is replaced by contracttest.Fake, so contract behaviour is covered
// by the unit tests in internal/contract and internal/election. Fix failures there first.
package integration
