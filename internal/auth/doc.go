// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package auth implements the credential and session lifecycle for gatekeep.
//
// # Domain Types
//
// Identities are read in one of two shapes:
//   - Identity - the public read; never carries the password or reset ticket hash
//   - Credentials - the authentication read; embeds Identity and adds the secrets
//
// New identities should be created with NewCredentials, which validates that at
// least one identifier is present and that a password hash was supplied.
//
// # Services
//
// Service types coordinate domain operations:
//   - TokenService - access/refresh issuance, refresh rotation and revocation
//   - ResetService - single-use password reset tickets
//   - Service - register, login, logout, refresh, forgot/reset password, profile
//
// CredentialStore sits in front of an IdentityRepository and owns the profile
// cache. Services are created with New*Service constructors that validate
// dependencies.
package auth
