// Package handlers provides general infrastructure HTTP handlers (health, readiness, version).
package handlers
