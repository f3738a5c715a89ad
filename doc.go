// Package davincikit drives server-orchestrated authentication flows
// (PingOne DaVinci and Journey) and manages the lifecycle of on-device
// MFA credentials (OATH, push, FIDO2, device binding).
//
// The package is organized around four subsystems: the workflow engine
// (package workflow), the flow collector model (package collector), the
// OIDC core (package oidc) and the push credential engine (package
// push). This root package wires them together behind a single Client.
package davincikit
