// Package testsupport provides shared fixtures for package tests: temp-dir
// configs, canned source clients, and on-disk PIP builders.
package testsupport
