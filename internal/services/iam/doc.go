// Package iam provides identity and access management for the dashboard.
//
// It drives the OIDC authorization code login (FlowManager), rewrites the
// persisted role assignments from the provider's claims on every login
// (RoleReconciler), resolves the caller of each request from the session or
// a bearer token (Resolver) and answers capability questions from roles
// (Authorizer).
//
// Request Flow:
//
//	Request → Resolver → SessionAuthenticator → TokenAuthenticator → Principal
//	       ↓
//	   Guards → Authorizer (Casbin, read-only)
//
// Roles are looked up once per request and carried on the Principal.
package iam
