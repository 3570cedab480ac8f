// Package testutil provides deterministic helpers shared by package tests:
// an in-memory json-server compatible backend that records every request,
// and a golden-file assertion for rendered output.
package testutil
